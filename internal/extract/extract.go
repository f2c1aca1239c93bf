// Package extract turns raw API records into rows for the attempts table.
//
// Nothing here rejects a record: missing required values stay NULL and the
// table's NOT NULL constraints decide whether the row is stored.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
	"github.com/shrimpsizemoose/attemptlog/internal/passback"
)

const (
	FieldUserID         = "lti_user_id"
	FieldAttemptType    = "attempt_type"
	FieldIsCorrect      = "is_correct"
	FieldCreatedAt      = "created_at"
	FieldPassbackParams = "passback_params"

	ParamConsumerKey       = "oauth_consumer_key"
	ParamResultSourcedID   = "lis_result_sourcedid"
	ParamOutcomeServiceURL = "lis_outcome_service_url"
)

type Extractor struct {
	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Extractor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Extractor{log: log}
}

// Extract maps every raw record to exactly one Attempt, in order.
func (e *Extractor) Extract(raws []models.RawAttempt) []models.Attempt {
	attempts := make([]models.Attempt, 0, len(raws))
	for _, raw := range raws {
		attempts = append(attempts, e.Record(raw))
	}
	return attempts
}

func (e *Extractor) Record(raw models.RawAttempt) models.Attempt {
	params := e.passbackParams(raw)

	attemptType := e.stringValue(raw, FieldAttemptType, raw[FieldAttemptType])

	var isCorrect *int64
	if attemptType == nil || *attemptType != models.AttemptTypeRun {
		isCorrect = e.intValue(raw[FieldIsCorrect])
	}

	return models.Attempt{
		UserID:               e.stringValue(raw, FieldUserID, raw[FieldUserID]),
		OAuthConsumerKey:     e.stringValue(raw, ParamConsumerKey, params[ParamConsumerKey]),
		LisResultSourcedID:   e.stringValue(raw, ParamResultSourcedID, params[ParamResultSourcedID]),
		LisOutcomeServiceURL: e.stringValue(raw, ParamOutcomeServiceURL, params[ParamOutcomeServiceURL]),
		IsCorrect:            isCorrect,
		AttemptType:          attemptType,
		CreatedAt:            e.stringValue(raw, FieldCreatedAt, raw[FieldCreatedAt]),
	}
}

// passbackParams never fails: anything unreadable becomes an empty mapping.
func (e *Extractor) passbackParams(raw models.RawAttempt) map[string]any {
	value, ok := raw[FieldPassbackParams]
	if !ok || value == nil {
		value = "{}"
	}

	var src string
	switch v := value.(type) {
	case string:
		src = v
	default:
		e.log.Warnf("passback_params is %T, not a string: %v", value, value)
		return map[string]any{}
	}

	params, err := passback.ParseMapping(src)
	if err != nil {
		e.log.Errorf("Error evaluating passback_params: %v for data: %s", err, src)
		return map[string]any{}
	}
	return params
}

func (e *Extractor) stringValue(raw models.RawAttempt, field string, value any) *string {
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool, int, int64, float64:
		s = fmt.Sprint(v)
	default:
		e.log.Warnf("Field %s holds %T, storing NULL: %v", field, value, raw)
		return nil
	}
	return &s
}

func (e *Extractor) intValue(value any) *int64 {
	var n int64
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		if v {
			n = 1
		}
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != float64(int64(f)) {
				e.log.Warnf("is_correct %q is not an integer, storing NULL", v.String())
				return nil
			}
			i = int64(f)
		}
		n = i
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		if v != float64(int64(v)) {
			e.log.Warnf("is_correct %v is not an integer, storing NULL", v)
			return nil
		}
		n = int64(v)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			e.log.Warnf("is_correct %q is not an integer, storing NULL", v)
			return nil
		}
		n = i
	default:
		e.log.Warnf("is_correct has unsupported type %T, storing NULL", value)
		return nil
	}
	return &n
}
