package passback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected map[string]any
	}{
		{
			name:  "typical passback params",
			input: `{'oauth_consumer_key': 'k1', 'lis_result_sourcedid': 's1', 'lis_outcome_service_url': 'http://x'}`,
			expected: map[string]any{
				"oauth_consumer_key":      "k1",
				"lis_result_sourcedid":    "s1",
				"lis_outcome_service_url": "http://x",
			},
		},
		{
			name:     "empty dict",
			input:    "{}",
			expected: map[string]any{},
		},
		{
			name:     "strict json is accepted",
			input:    `{"a": true, "b": null, "c": [1, 2.5]}`,
			expected: map[string]any{"a": true, "b": nil, "c": []any{int64(1), 2.5}},
		},
		{
			name:     "python constants and trailing comma",
			input:    "{'ok': True, 'bad': False, 'none': None,}",
			expected: map[string]any{"ok": true, "bad": false, "none": nil},
		},
		{
			name:     "escapes inside quotes",
			input:    `{'url': 'http://x/?a=1&b=\'q\'', "tab": "a\tb", 'uni': '\u00e9'}`,
			expected: map[string]any{"url": "http://x/?a=1&b='q'", "tab": "a\tb", "uni": "é"},
		},
		{
			name:     "raw string",
			input:    `{'path': r'C:\new'}`,
			expected: map[string]any{"path": `C:\new`},
		},
		{
			name:     "nested structures",
			input:    "{'t': (1, -2), 'g': (3), 'd': {'x': [0x10, 0o7, 0b11, 1000]}}",
			expected: map[string]any{"t": []any{int64(1), int64(-2)}, "g": int64(3), "d": map[string]any{"x": []any{int64(16), int64(7), int64(3), int64(1000)}}},
		},
		{
			name:     "non string keys",
			input:    "{1: 'a', None: 'b', True: 'c'}",
			expected: map[string]any{"1": "a", "None": "b", "True": "c"},
		},
		{
			name:     "triple quoted and whitespace",
			input:    "\n  { 'note' : '''multi\nline''' , 'e': 1e3 }  \n",
			expected: map[string]any{"note": "multi\nline", "e": 1000.0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMapping(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseMappingRejects(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		notMapping bool
	}{
		{name: "empty string", input: ""},
		{name: "list", input: "[1, 2]", notMapping: true},
		{name: "string", input: "'abc'", notMapping: true},
		{name: "number", input: "42", notMapping: true},
		{name: "unterminated dict", input: "{'a': 1"},
		{name: "unterminated string", input: "{'a': 'b}"},
		{name: "missing colon", input: "{'a' 1}"},
		{name: "function call", input: "{'a': open('x')}"},
		{name: "trailing garbage", input: "{} {}"},
		{name: "f-string", input: "{'a': f'{x}'}"},
		{name: "complex number", input: "{'a': 1j}"},
		{name: "huge int", input: "{'a': 99999999999999999999999}"},
		{name: "leading zero", input: "{'a': 01}"},
		{name: "builtin call", input: "__import__('os').system('ls')"},
		{name: "unknown name", input: "{'a': os}"},
		{name: "arithmetic", input: "{'a': 1 + 2}"},
		{name: "negated string", input: "{'a': -'x'}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMapping(tc.input)
			require.Error(t, err)
			assert.Nil(t, got)

			if tc.notMapping {
				assert.True(t, errors.Is(err, ErrNotMapping))
			} else {
				var syntaxErr *SyntaxError
				assert.True(t, errors.As(err, &syntaxErr), "expected SyntaxError, got %T", err)
			}
		})
	}
}

func TestParseScalars(t *testing.T) {
	v, err := Parse("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	v, err = Parse("--2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = Parse("()")
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	v, err = Parse(`b'\x41\101'`)
	require.NoError(t, err)
	assert.Equal(t, "AA", v)

	_, err = Parse("-'a'")
	assert.Error(t, err)
}
