package models

import "time"

type ReportStats struct {
	Attempts      int64 `db:"attempts" json:"attempts"`
	Successful    int64 `db:"successful" json:"successful"`
	DistinctUsers int64 `db:"distinct_users" json:"distinct_users"`
}

type RunSummary struct {
	Window   Window    `json:"window"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`

	Stats *ReportStats `json:"stats,omitempty"`

	FetchFailed   bool `json:"fetch_failed"`
	IngestFailed  bool `json:"ingest_failed"`
	ReportFailed  bool `json:"report_failed"`
	PublishFailed bool `json:"publish_failed"`
	NotifyFailed  bool `json:"notify_failed"`
}

// OK reports whether every stage of the run went through.
func (s RunSummary) OK() bool {
	return !s.FetchFailed && !s.IngestFailed && !s.ReportFailed && !s.PublishFailed && !s.NotifyFailed
}

func (s RunSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}
