package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

func decodeRaw(t *testing.T, body string) []models.RawAttempt {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raws []models.RawAttempt
	require.NoError(t, dec.Decode(&raws))
	return raws
}

func newObserved() (*Extractor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return New(zap.New(core).Sugar()), logs
}

func TestExtractRunForcesNullCorrectness(t *testing.T) {
	raws := decodeRaw(t, `[{"lti_user_id":"u1","attempt_type":"run","is_correct":1,"created_at":"2023-04-01 12:50:00","passback_params":"{'oauth_consumer_key':'k1','lis_result_sourcedid':'s1','lis_outcome_service_url':'http://x'}"}]`)

	e, logs := newObserved()
	attempts := e.Extract(raws)
	require.Len(t, attempts, 1)

	a := attempts[0]
	assert.Equal(t, "u1", *a.UserID)
	assert.Equal(t, "k1", *a.OAuthConsumerKey)
	assert.Equal(t, "s1", *a.LisResultSourcedID)
	assert.Equal(t, "http://x", *a.LisOutcomeServiceURL)
	assert.Nil(t, a.IsCorrect)
	assert.Equal(t, "run", *a.AttemptType)
	assert.Equal(t, "2023-04-01 12:50:00", *a.CreatedAt)
	assert.Zero(t, logs.Len())
}

func TestExtractSubmitKeepsCorrectness(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		expected *int64
	}{
		{name: "number one", value: `1`, expected: int64Ptr(1)},
		{name: "number zero", value: `0`, expected: int64Ptr(0)},
		{name: "integral float", value: `1.0`, expected: int64Ptr(1)},
		{name: "bool", value: `true`, expected: int64Ptr(1)},
		{name: "numeric string", value: `"0"`, expected: int64Ptr(0)},
		{name: "null", value: `null`, expected: nil},
		{name: "garbage string", value: `"yes"`, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raws := decodeRaw(t, `[{"attempt_type":"submit","is_correct":`+tc.value+`}]`)
			attempts := New(nil).Extract(raws)
			require.Len(t, attempts, 1)
			assert.Equal(t, tc.expected, attempts[0].IsCorrect)
		})
	}
}

func TestExtractRunIgnoresAnyCorrectness(t *testing.T) {
	for _, value := range []string{`1`, `0`, `true`, `"1"`, `null`} {
		raws := decodeRaw(t, `[{"attempt_type":"run","is_correct":`+value+`}]`)
		attempts := New(nil).Extract(raws)
		require.Len(t, attempts, 1)
		assert.Nil(t, attempts[0].IsCorrect, "is_correct=%s", value)
	}
}

func TestExtractBadPassbackParams(t *testing.T) {
	testCases := []struct {
		name  string
		field string
	}{
		{name: "syntax error", field: `"passback_params":"{'oauth_consumer_key': "`},
		{name: "not a mapping", field: `"passback_params":"['a', 'b']"`},
		{name: "not a string", field: `"passback_params":42`},
		{
			name:  "json object instead of literal string",
			field: `"passback_params":{"oauth_consumer_key":"k1","lis_result_sourcedid":"s1","lis_outcome_service_url":"http://x"}`,
		},
		{name: "code instead of literal", field: `"passback_params":"__import__('os').system('ls')"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raws := decodeRaw(t, `[{"lti_user_id":"u1","attempt_type":"submit",`+tc.field+`}]`)

			e, logs := newObserved()
			var attempts []models.Attempt
			require.NotPanics(t, func() { attempts = e.Extract(raws) })
			require.Len(t, attempts, 1)

			a := attempts[0]
			assert.Equal(t, "u1", *a.UserID)
			assert.Nil(t, a.OAuthConsumerKey)
			assert.Nil(t, a.LisResultSourcedID)
			assert.Nil(t, a.LisOutcomeServiceURL)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestExtractMissingFieldsStayNull(t *testing.T) {
	raws := decodeRaw(t, `[{}, {"lti_user_id": 17, "passback_params": "{'lis_result_sourcedid': 's'}"}]`)

	attempts := New(nil).Extract(raws)
	require.Len(t, attempts, 2)

	assert.Equal(t, models.Attempt{}, attempts[0])

	assert.Equal(t, "17", *attempts[1].UserID)
	assert.Equal(t, "s", *attempts[1].LisResultSourcedID)
	assert.Nil(t, attempts[1].AttemptType)
	assert.Nil(t, attempts[1].CreatedAt)
}

func TestExtractNestedValueForStringColumn(t *testing.T) {
	raws := decodeRaw(t, `[{"lti_user_id": {"id": 1}, "attempt_type": "submit"}]`)

	e, logs := newObserved()
	attempts := e.Extract(raws)
	require.Len(t, attempts, 1)
	assert.Nil(t, attempts[0].UserID)
	assert.Equal(t, 1, logs.Len())
}

func int64Ptr(v int64) *int64 {
	return &v
}
