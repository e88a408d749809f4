package articulation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	RootCause  string  `json:"root_cause"`
	Confidence float64 `json:"confidence"`
}

func TestDecodeJSON_Cascade(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMethod ParseMethod
		wantCause  string
	}{
		{
			name:       "fenced json",
			input:      "Sure:\n```json\n{\"root_cause\": \"a\", \"confidence\": 0.8}\n```\nDone.",
			wantMethod: MethodFencedJSON,
			wantCause:  "a",
		},
		{
			name:       "fenced json uppercase tag",
			input:      "```JSON\n{\"root_cause\": \"b\"}\n```",
			wantMethod: MethodFencedJSON,
			wantCause:  "b",
		},
		{
			name:       "fenced without tag",
			input:      "```\n{\"root_cause\": \"c\"}\n```",
			wantMethod: MethodFencedAny,
			wantCause:  "c",
		},
		{
			name:       "bare object with prose",
			input:      "The diagnosis is {\"root_cause\": \"d\", \"confidence\": 1} as requested.",
			wantMethod: MethodBraceSpan,
			wantCause:  "d",
		},
		{
			name:       "decoy fence falls through to brace span",
			input:      "```python\nprint('x')\n```\n{\"root_cause\": \"e\"}",
			wantMethod: MethodBraceSpan,
			wantCause:  "e",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			method, err := DecodeJSON(tt.input, &p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantCause, p.RootCause)
		})
	}
}

func TestDecodeJSON_NoJSON(t *testing.T) {
	var p payload
	_, err := DecodeJSON("I think the problem is the network.", &p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoJSON))

	_, err = DecodeJSON("broken {\"root_cause\": } reply", &p)
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestExtractJSON(t *testing.T) {
	c, method, err := ExtractJSON("noise {\"a\": 1} {\"b\": 2}")
	require.NoError(t, err)
	assert.Equal(t, MethodBraceSpan, method)
	assert.Equal(t, `{"a": 1}`, c)

	_, _, err = ExtractJSON("nothing here")
	assert.ErrorIs(t, err, ErrNoJSON)
}
