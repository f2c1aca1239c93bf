// Package pipeline runs one fetch, load, report and notify cycle.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/export"
	"github.com/shrimpsizemoose/attemptlog/internal/fetch"
	"github.com/shrimpsizemoose/attemptlog/internal/models"
	"github.com/shrimpsizemoose/attemptlog/internal/notify"
	"github.com/shrimpsizemoose/attemptlog/internal/store"
)

type Fetcher interface {
	Fetch(ctx context.Context, window models.Window) ([]models.RawAttempt, error)
}

type Extractor interface {
	Extract(raws []models.RawAttempt) []models.Attempt
}

// StoreOpener returns a fresh connection each time it is called. The runner
// closes every store it opens.
type StoreOpener func() (store.AttemptStore, error)

// Observer is told about every finished run. Observers must not fail the run.
type Observer func(ctx context.Context, summary models.RunSummary)

type Runner struct {
	Fetcher   Fetcher
	Extractor Extractor
	OpenStore StoreOpener
	Publisher export.Publisher
	Notifier  notify.Notifier
	Observers []Observer
	Log       *zap.SugaredLogger
	Now       func() time.Time
}

func (r *Runner) logger() *zap.SugaredLogger {
	if r.Log == nil {
		return zap.NewNop().Sugar()
	}
	return r.Log
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Run never aborts early: each stage degrades to an empty or missing result
// and the email goes out regardless.
func (r *Runner) Run(ctx context.Context, window models.Window) models.RunSummary {
	log := r.logger()
	summary := models.RunSummary{Window: window, Started: r.now()}

	log.Info("Script started.")
	log.Infof("Report window: %s", window)

	raws := r.fetch(ctx, window, &summary)
	attempts := r.Extractor.Extract(raws)

	r.ingest(ctx, attempts, &summary)
	r.report(ctx, &summary)
	r.publish(ctx, &summary)
	r.notify(ctx, window, &summary)

	summary.Finished = r.now()
	log.Info("Script finished.")

	for _, observe := range r.Observers {
		observe(ctx, summary)
	}
	return summary
}

func (r *Runner) fetch(ctx context.Context, window models.Window, summary *models.RunSummary) []models.RawAttempt {
	log := r.logger()

	raws, err := r.Fetcher.Fetch(ctx, window)
	if err != nil {
		summary.FetchFailed = true
		switch fetch.ReasonOf(err) {
		case fetch.ReasonNullBody:
			log.Warn("API response was None.")
		case fetch.ReasonNotAList:
			log.Warnf("API response was not a list: %v", err)
		default:
			log.Errorf("Error fetching data from API: %v", err)
		}
		return nil
	}

	summary.Fetched = len(raws)
	return raws
}

func (r *Runner) ingest(ctx context.Context, attempts []models.Attempt, summary *models.RunSummary) {
	log := r.logger()

	log.Info("Attempting to connect to the database.")
	st, err := r.OpenStore()
	if err != nil {
		summary.IngestFailed = true
		log.Errorf("Database connection failed: %v", err)
		log.Error("Database operations skipped due to connection failure.")
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warnf("Failed to close database connection: %v", err)
		}
	}()
	log.Info("Database connection successful.")

	if err := st.EnsureTable(ctx); err != nil {
		summary.IngestFailed = true
		log.Errorf("Error during table creation: %v", err)
	}

	res := st.InsertBatch(ctx, attempts)
	summary.Inserted = res.Inserted
	summary.Skipped = res.Skipped
}

func (r *Runner) report(ctx context.Context, summary *models.RunSummary) {
	log := r.logger()

	st, err := r.OpenStore()
	if err != nil {
		summary.ReportFailed = true
		log.Errorf("Could not establish connection for reporting: %v", err)
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warnf("Failed to close reporting connection: %v", err)
		}
	}()

	log.Info("Creating daily report.")
	stats, err := st.ReportStats(ctx)
	if err != nil {
		summary.ReportFailed = true
		log.Errorf("Database error during report queries: %v", err)
		log.Error("Report statistics could not be retrieved due to a database error.")
		return
	}

	log.Infof("Report: %d attempts, %d successful, %d distinct users",
		stats.Attempts, stats.Successful, stats.DistinctUsers)
	summary.Stats = &stats
}

func (r *Runner) publish(ctx context.Context, summary *models.RunSummary) {
	if summary.Stats == nil {
		return
	}
	if err := r.Publisher.Publish(ctx, *summary.Stats); err != nil {
		summary.PublishFailed = true
		r.logger().Errorf("Error updating Google Sheet: %v", err)
	}
}

func (r *Runner) notify(ctx context.Context, window models.Window, summary *models.RunSummary) {
	if err := r.Notifier.Send(ctx, notify.CompletionMessage(window)); err != nil {
		summary.NotifyFailed = true
		r.logger().Errorf("Error sending email: %v", err)
	}
}
