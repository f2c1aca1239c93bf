package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/export"
	"github.com/shrimpsizemoose/attemptlog/internal/extract"
	"github.com/shrimpsizemoose/attemptlog/internal/fetch"
	"github.com/shrimpsizemoose/attemptlog/internal/metrics"
	"github.com/shrimpsizemoose/attemptlog/internal/models"
	"github.com/shrimpsizemoose/attemptlog/internal/notify"
	"github.com/shrimpsizemoose/attemptlog/internal/pipeline"
	"github.com/shrimpsizemoose/attemptlog/internal/store"
)

// Logger hands out per-component loggers of one run log.
type Logger interface {
	Component(name string) *zap.SugaredLogger
}

type Service struct {
	Config *Config
	Status *StatusRecorder
}

func NewService(ctx context.Context, configPath string, log *zap.SugaredLogger) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	status, err := NewStatusRecorder(ctx, config.Redis)
	if err != nil {
		// run status is optional, the job still runs without it
		if log != nil {
			log.Warnf("Run status recording disabled: %v", err)
		}
		status = &StatusRecorder{enabled: false}
	}

	return &Service{
		Config: config,
		Status: status,
	}, nil
}

// Runner wires a pipeline whose components all write to log.
func (s *Service) Runner(log Logger) (*pipeline.Runner, error) {
	cfg := s.Config

	mailer, err := notify.NewMailer(notify.Config{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Sender:    cfg.Email.Sender,
		Password:  cfg.Email.Password,
		Recipient: cfg.Email.Recipient,
	}, log.Component("notify"))
	if err != nil {
		return nil, fmt.Errorf("failed to init mailer: %w", err)
	}

	storeLog := log.Component("store")
	statusLog := log.Component("status")

	return &pipeline.Runner{
		Fetcher: fetch.NewClient(cfg.API.URL, fetch.Credentials{
			Client:    cfg.API.Client,
			ClientKey: cfg.API.ClientKey,
		}, nil, log.Component("fetch")),
		Extractor: extract.New(log.Component("extract")),
		OpenStore: func() (store.AttemptStore, error) {
			return NewStore(cfg.Database, storeLog)
		},
		Publisher: export.NewSheetsPublisher(export.SheetsConfig{
			CredentialsPath: cfg.GoogleSheets.CredsPath,
			SheetName:       cfg.GoogleSheets.SheetName,
			SpreadsheetID:   cfg.GoogleSheets.SpreadsheetID,
		}, log.Component("sheets")),
		Notifier: mailer,
		Observers: []pipeline.Observer{
			func(ctx context.Context, summary models.RunSummary) {
				metrics.Observe(summary)
			},
			func(ctx context.Context, summary models.RunSummary) {
				if err := s.Status.Record(ctx, summary); err != nil {
					statusLog.Warnf("Failed to record run status: %v", err)
				}
			},
		},
		Log: log.Component("pipeline"),
	}, nil
}

// PushMetrics sends the run metrics to the configured Pushgateway, if any.
func (s *Service) PushMetrics() error {
	if s.Config.Metrics.PushgatewayURL == "" {
		return nil
	}
	return metrics.Push(s.Config.Metrics.PushgatewayURL, s.Config.Metrics.Job)
}

func (s *Service) Close() error {
	if err := s.Status.Close(); err != nil {
		return fmt.Errorf("errors while closing: status: %w", err)
	}
	return nil
}
