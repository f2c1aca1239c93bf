// Package runlog owns the operator log of a run: one file per calendar day
// in a directory, with files older than the retention window removed when
// the log is opened.
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultDir      = "logs"
	DefaultKeepDays = 3

	dateLayout = "2006-01-02"
	fileSuffix = ".log"
	timeLayout = "2006-01-02 15:04:05,000"
)

type Options struct {
	Dir      string
	KeepDays int
	// Name is the root logger name printed on every line.
	Name    string
	Level   zapcore.Level
	Console bool
	// Now is used for the file name and retention; time.Now when nil.
	Now func() time.Time
}

type Log struct {
	*zap.SugaredLogger

	base *zap.Logger
	file *os.File
	path string
}

// Open creates the directory if needed, opens today's file for appending and
// removes expired files. Cleanup problems are logged, not returned.
func Open(opts Options) (*Log, error) {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.KeepDays <= 0 {
		opts.KeepDays = DefaultKeepDays
	}
	if opts.Name == "" {
		opts.Name = "attemptlog"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", opts.Dir, err)
	}

	now := opts.Now()
	path := filepath.Join(opts.Dir, now.Format(dateLayout)+fileSuffix)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	cores := []zapcore.Core{
		lineCore{zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(file), opts.Level)},
	}
	if opts.Console {
		cores = append(cores, lineCore{
			zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), opts.Level),
		})
	}

	base := zap.New(zapcore.NewTee(cores...)).Named(opts.Name)
	l := &Log{
		SugaredLogger: base.Sugar(),
		base:          base,
		file:          file,
		path:          path,
	}

	removed := Cleanup(opts.Dir, opts.KeepDays, now, l.SugaredLogger)
	l.Infof("Log file cleanup finished, %d old files removed", removed)

	return l, nil
}

// Path is the file the log is written to.
func (l *Log) Path() string {
	return l.path
}

// Component returns a child logger whose name is suffixed with component.
func (l *Log) Component(name string) *zap.SugaredLogger {
	return l.base.Named(name).Sugar()
}

func (l *Log) Close() error {
	// Sync on a regular file is expected to succeed; stderr may not support it.
	syncErr := l.base.Sync()
	closeErr := l.file.Close()
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}
	if err := flushError(syncErr); err != nil {
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return nil
}

// Cleanup removes <date>.log files in dir that are more than keepDays older
// than now. Files whose name is not a date are kept with a warning.
func Cleanup(dir string, keepDays int, now time.Time, log *zap.SugaredLogger) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+fileSuffix))
	if err != nil {
		log.Errorf("Error listing log files in %s: %v", dir, err)
		return 0
	}

	retention := time.Duration(keepDays) * 24 * time.Hour
	removed := 0
	for _, file := range matches {
		name := strings.TrimSuffix(filepath.Base(file), fileSuffix)
		fileDate, err := time.ParseInLocation(dateLayout, name, now.Location())
		if err != nil {
			log.Warnf("Skipping log file with unexpected name format: %s", file)
			continue
		}
		if now.Sub(fileDate) <= retention {
			continue
		}
		if err := os.Remove(file); err != nil {
			log.Errorf("Error deleting log file %s: %v", file, err)
			continue
		}
		removed++
	}
	return removed
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " - ",
	}
}

// lineCore prints the level after the logger name, giving
// "time - name - LEVEL - message" lines.
type lineCore struct {
	zapcore.Core
}

func (c lineCore) With(fields []zapcore.Field) zapcore.Core {
	return lineCore{c.Core.With(fields)}
}

func (c lineCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c lineCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.LoggerName = ent.LoggerName + " - " + ent.Level.CapitalString()
	return c.Core.Write(ent, fields)
}

// flushError drops the sync errors terminals and pipes report for stderr.
func flushError(err error) error {
	var kept []error
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, syscall.EINVAL) || errors.Is(e, syscall.ENOTTY) {
			continue
		}
		kept = append(kept, e)
	}
	return multierr.Combine(kept...)
}
