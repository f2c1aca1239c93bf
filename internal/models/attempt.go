package models

import (
	"fmt"
	"strings"
)

// Attempt types sent by the API. A run is executed code that is never graded.
const (
	AttemptTypeRun    = "run"
	AttemptTypeSubmit = "submit"
)

// RawAttempt is one record as returned by the attempts API. Values keep the
// shape produced by encoding/json with UseNumber.
type RawAttempt map[string]any

type Attempt struct {
	UserID               *string `db:"user_id" json:"user_id"`
	OAuthConsumerKey     *string `db:"oauth_consumer_key" json:"oauth_consumer_key"`
	LisResultSourcedID   *string `db:"lis_result_sourcedid" json:"lis_result_sourcedid"`
	LisOutcomeServiceURL *string `db:"lis_outcome_service_url" json:"lis_outcome_service_url"`
	IsCorrect            *int64  `db:"is_correct" json:"is_correct"`
	AttemptType          *string `db:"attempt_type" json:"attempt_type"`
	CreatedAt            *string `db:"created_at" json:"created_at"`
}

// StoredAttempt is an Attempt read back together with its surrogate key.
type StoredAttempt struct {
	ID int64 `db:"id" json:"id"`
	Attempt
}

func (a Attempt) String() string {
	parts := []string{
		"user_id=" + strOrNull(a.UserID),
		"oauth_consumer_key=" + strOrNull(a.OAuthConsumerKey),
		"lis_result_sourcedid=" + strOrNull(a.LisResultSourcedID),
		"lis_outcome_service_url=" + strOrNull(a.LisOutcomeServiceURL),
		"is_correct=" + intOrNull(a.IsCorrect),
		"attempt_type=" + strOrNull(a.AttemptType),
		"created_at=" + strOrNull(a.CreatedAt),
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func strOrNull(s *string) string {
	if s == nil {
		return "NULL"
	}
	return fmt.Sprintf("%q", *s)
}

func intOrNull(n *int64) string {
	if n == nil {
		return "NULL"
	}
	return fmt.Sprint(*n)
}
