package main

import (
	"context"
	"flag"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attemptlog/internal/app"
	"github.com/shrimpsizemoose/attemptlog/internal/runlog"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "Path to config file (JSON, or TOML by .toml extension)")
		logDir     = flag.String("log-dir", runlog.DefaultDir, "Directory for daily log files")
		keepDays   = flag.Int("log-keep-days", runlog.DefaultKeepDays, "Remove log files older than this many days")
		start      = flag.String("start", "", "Report window start, e.g. 2023-04-01 12:46:47.860798")
		end        = flag.String("end", "", "Report window end")
		console    = flag.Bool("console", false, "Mirror the run log to stderr")
	)
	flag.Parse()

	runLog, err := runlog.Open(runlog.Options{
		Dir:      *logDir,
		KeepDays: *keepDays,
		Console:  *console,
	})
	if err != nil {
		logger.Error.Fatalf("Failed to open run log: %v", err)
	}

	ctx := context.Background()
	service, err := app.NewService(ctx, *configPath, runLog.SugaredLogger)
	if err != nil {
		runLog.Errorf("%v", err)
		runLog.Error("Failed to load essential configuration sections. Exiting.")
		runLog.Close()
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()
	runLog.Infof("Configuration: %s", service.Config)

	window, err := service.Config.Window(*start, *end, time.Now())
	if err != nil {
		runLog.Errorf("Invalid report window: %v", err)
		runLog.Close()
		service.Close()
		logger.Error.Fatalf("Invalid report window: %v", err)
	}

	runner, err := service.Runner(runLog)
	if err != nil {
		runLog.Errorf("Failed to set up the run: %v", err)
		runLog.Close()
		service.Close()
		logger.Error.Fatalf("Failed to set up the run: %v", err)
	}

	logger.Info.Printf("Загружаем попытки за %s, лог: %s", window, runLog.Path())
	summary := runner.Run(ctx, window)

	if err := service.PushMetrics(); err != nil {
		runLog.Warnf("Failed to push metrics: %v", err)
	}

	logger.Info.Printf(
		"Готово: получено %d, записано %d, пропущено %d",
		summary.Fetched, summary.Inserted, summary.Skipped,
	)
	if !summary.OK() {
		logger.Info.Println("Не все шаги прошли успешно, подробности в логе")
	}

	if err := runLog.Close(); err != nil {
		logger.Error.Printf("Failed to close run log: %v", err)
	}
}
