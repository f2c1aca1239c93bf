// internal/app/status.go
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

const (
	timeFormat     = "2006-01-02 15:04:05"
	lastRunKeyTpl  = "%s:last_run" // ${prefix}:last_run
	historyKeyTpl  = "%s:history"  // ${prefix}:history
	defaultHistory = 30
)

// StatusRecorder keeps the outcome of recent runs in redis so operators can
// check the job without reading log files. A recorder built from an empty
// URL does nothing.
type StatusRecorder struct {
	enabled bool
	redis   *redis.Client
	prefix  string
	history int
}

func NewStatusRecorder(ctx context.Context, config RedisConfig) (*StatusRecorder, error) {
	if config.URL == "" {
		return &StatusRecorder{enabled: false}, nil
	}

	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newStatusRecorder(client, config), nil
}

func newStatusRecorder(client *redis.Client, config RedisConfig) *StatusRecorder {
	history := config.History
	if history <= 0 {
		history = defaultHistory
	}
	return &StatusRecorder{
		enabled: true,
		redis:   client,
		prefix:  config.Prefix,
		history: history,
	}
}

func (r *StatusRecorder) Enabled() bool {
	return r.enabled
}

func (r *StatusRecorder) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// Record stores summary as the last run and prepends it to the bounded
// history list.
func (r *StatusRecorder) Record(ctx context.Context, summary models.RunSummary) error {
	if !r.enabled {
		return nil
	}

	line, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	fields := map[string]interface{}{
		"window_start":  summary.Window.FormattedStart(),
		"window_end":    summary.Window.FormattedEnd(),
		"started_utc":   summary.Started.UTC().Format(timeFormat),
		"finished_utc":  summary.Finished.UTC().Format(timeFormat),
		"fetched":       summary.Fetched,
		"inserted":      summary.Inserted,
		"skipped":       summary.Skipped,
		"ok":            strconv.FormatBool(summary.OK()),
		"report_posted": strconv.FormatBool(summary.Stats != nil && !summary.PublishFailed),
	}
	if summary.Stats != nil {
		fields["attempts"] = summary.Stats.Attempts
		fields["successful"] = summary.Stats.Successful
		fields["distinct_users"] = summary.Stats.DistinctUsers
	}

	lastRunKey := fmt.Sprintf(lastRunKeyTpl, r.prefix)
	historyKey := fmt.Sprintf(historyKeyTpl, r.prefix)

	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, lastRunKey)
	pipe.HSet(ctx, lastRunKey, fields)
	pipe.LPush(ctx, historyKey, line)
	pipe.LTrim(ctx, historyKey, 0, int64(r.history-1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record run status: %w", err)
	}
	return nil
}

// RunStatus is the last_run hash as read back from redis.
type RunStatus struct {
	WindowStart string
	WindowEnd   string
	Finished    time.Time
	Fetched     int
	Inserted    int
	Skipped     int
	OK          bool
}

func (r *StatusRecorder) LastRun(ctx context.Context) (*RunStatus, error) {
	if !r.enabled {
		return nil, fmt.Errorf("status recorder is disabled")
	}

	key := fmt.Sprintf(lastRunKeyTpl, r.prefix)
	values, err := r.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last run: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no run recorded under %s", key)
	}

	finished, _ := time.Parse(timeFormat, values["finished_utc"])
	fetched, _ := strconv.Atoi(values["fetched"])
	inserted, _ := strconv.Atoi(values["inserted"])
	skipped, _ := strconv.Atoi(values["skipped"])
	ok, _ := strconv.ParseBool(values["ok"])

	return &RunStatus{
		WindowStart: values["window_start"],
		WindowEnd:   values["window_end"],
		Finished:    finished,
		Fetched:     fetched,
		Inserted:    inserted,
		Skipped:     skipped,
		OK:          ok,
	}, nil
}

// History returns up to the configured number of past summaries, newest
// first. Entries that fail to decode are dropped.
func (r *StatusRecorder) History(ctx context.Context, log *zap.SugaredLogger) ([]models.RunSummary, error) {
	if !r.enabled {
		return nil, nil
	}

	lines, err := r.redis.LRange(ctx, fmt.Sprintf(historyKeyTpl, r.prefix), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run history: %w", err)
	}

	summaries := make([]models.RunSummary, 0, len(lines))
	for _, line := range lines {
		var s models.RunSummary
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			if log != nil {
				log.Warnf("Skipping unreadable run history entry: %v", err)
			}
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
