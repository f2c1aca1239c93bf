// internal/metrics/metrics.go
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

// Registry holds only the run metrics, so a push does not ship Go runtime
// collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	RecordsFetched = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "attemptlog_records_fetched_total",
			Help: "Total number of attempt records returned by the API",
		},
	)

	RowsWritten = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attemptlog_rows_total",
			Help: "Attempt rows handled by the database, by outcome",
		},
		[]string{"outcome"},
	)

	StageFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attemptlog_stage_failures_total",
			Help: "Failed pipeline stages",
		},
		[]string{"stage"},
	)

	ReportValue = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attemptlog_report_value",
			Help: "Last published report values",
		},
		[]string{"stat"},
	)

	RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attemptlog_run_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	APIRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attemptlog_status_request_duration_seconds",
			Help:    "Duration of run status API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	LastSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "attemptlog_last_success_timestamp_seconds",
			Help: "Unix time of the last run where every stage succeeded",
		},
	)
)

// Observe records a finished run.
func Observe(summary models.RunSummary) {
	RecordsFetched.Add(float64(summary.Fetched))
	RowsWritten.WithLabelValues("inserted").Add(float64(summary.Inserted))
	RowsWritten.WithLabelValues("skipped").Add(float64(summary.Skipped))

	for stage, failed := range map[string]bool{
		"fetch":   summary.FetchFailed,
		"ingest":  summary.IngestFailed,
		"report":  summary.ReportFailed,
		"publish": summary.PublishFailed,
		"notify":  summary.NotifyFailed,
	} {
		if failed {
			StageFailures.WithLabelValues(stage).Inc()
		}
	}

	if summary.Stats != nil {
		ReportValue.WithLabelValues("attempts").Set(float64(summary.Stats.Attempts))
		ReportValue.WithLabelValues("successful").Set(float64(summary.Stats.Successful))
		ReportValue.WithLabelValues("distinct_users").Set(float64(summary.Stats.DistinctUsers))
	}

	RunDuration.Observe(summary.Duration().Seconds())
	if summary.OK() {
		LastSuccess.Set(float64(summary.Finished.Unix()))
	}
}

// Push sends the registry to a Prometheus Pushgateway.
func Push(url, job string) error {
	if err := push.New(url, job).Gatherer(Registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
