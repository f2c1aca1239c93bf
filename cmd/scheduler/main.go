package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attemptlog/internal/app"
	"github.com/shrimpsizemoose/attemptlog/internal/handlers"
	"github.com/shrimpsizemoose/attemptlog/internal/metrics"
	"github.com/shrimpsizemoose/attemptlog/internal/models"
	"github.com/shrimpsizemoose/attemptlog/internal/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "Path to config file (JSON, or TOML by .toml extension)")
		logDir     = flag.String("log-dir", runlog.DefaultDir, "Directory for daily log files")
		keepDays   = flag.Int("log-keep-days", runlog.DefaultKeepDays, "Remove log files older than this many days")
		console    = flag.Bool("console", false, "Mirror run logs to stderr")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := app.NewService(ctx, *configPath, nil)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()
	logger.Info.Printf("Configuration: %s", service.Config)

	if service.Config.Schedule.Cron == "" {
		logger.Error.Fatalf("schedule.cron is not set in %s", *configPath)
	}
	lookback, err := service.Config.Lookback()
	if err != nil {
		logger.Error.Fatalf("Failed to read schedule: %v", err)
	}

	logOptions := runlog.Options{Dir: *logDir, KeepDays: *keepDays, Console: *console}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err = scheduler.Cron(service.Config.Schedule.Cron).Do(func() {
		runOnce(ctx, service, logOptions, lookback)
	})
	if err != nil {
		logger.Error.Fatalf("Failed to schedule run: %v", err)
	}

	var metricsServer *http.Server
	if listen := service.Config.Metrics.Listen; listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		handlers.NewRunHandler(service.Status).Register(mux)
		metricsServer = &http.Server{Addr: listen, Handler: mux}

		go func() {
			logger.Info.Printf("Serving metrics and run status on %s", listen)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	scheduler.StartAsync()
	logger.Info.Printf("Садимся загружать по расписанию %q, окно %s", service.Config.Schedule.Cron, lookback)

	<-ctx.Done()

	scheduler.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("Failed to stop metrics server: %v", err)
		}
	}

	logger.Info.Println("Закончили загружать")
}

func runOnce(ctx context.Context, service *app.Service, opts runlog.Options, lookback time.Duration) {
	runLog, err := runlog.Open(opts)
	if err != nil {
		logger.Error.Printf("Failed to open run log: %v", err)
		return
	}
	defer runLog.Close()

	runner, err := service.Runner(runLog)
	if err != nil {
		runLog.Errorf("Failed to set up the run: %v", err)
		return
	}

	window := models.LastWindow(time.Now(), lookback)
	summary := runner.Run(ctx, window)
	logger.Info.Printf(
		"Прогон за %s: получено %d, записано %d, пропущено %d",
		window, summary.Fetched, summary.Inserted, summary.Skipped,
	)

	if err := service.PushMetrics(); err != nil {
		runLog.Warnf("Failed to push metrics: %v", err)
	}
}
