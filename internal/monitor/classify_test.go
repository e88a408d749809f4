package monitor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Traceback (most recent call last):", true},
		{"something FAILED here", true},
		{"keyerror in lowercase", true},
		{"ModuleNotFoundError: No module named 'x'", true},
		{"all good", false},
		{"Result: 42", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsErrorLine(tt.line), tt.line)
	}
}

func TestValidateOutput(t *testing.T) {
	ok, msg := ValidateOutput("anything", "")
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, _ = ValidateOutput("sum is 42\n", `sum is \d+`)
	assert.True(t, ok)

	ok, msg = ValidateOutput("nothing", `^done$`)
	assert.False(t, ok)
	assert.Contains(t, msg, "does not match")

	ok, msg = ValidateOutput("x", `([unclosed`)
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(msg, "invalid validation pattern:"), msg)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		wantKind     string
		detailSubstr string
	}{
		{
			name:         "windows bracket code",
			output:       "[WinError 10038] An operation was attempted on something that is not a socket",
			wantKind:     "WinError",
			detailSubstr: "10038",
		},
		{
			name:         "errno bracket code",
			output:       "OSError: [Errno 2] No such file or directory: 'x.txt'",
			wantKind:     "OSError",
			detailSubstr: "Errno 2",
		},
		{
			name:         "import error traceback",
			output:       "Traceback (most recent call last):\n  File \"test.py\", line 1\nImportError: No module named 'xxx'",
			wantKind:     "ImportError",
			detailSubstr: "No module named",
		},
		{
			name:         "last exception wins",
			output:       "Traceback:\nKeyError: 'a'\n\nDuring handling...\nTypeError: unsupported operand\n",
			wantKind:     "TypeError",
			detailSubstr: "unsupported operand",
		},
		{
			name:         "timeout vocabulary",
			output:       "Operation timed out after 30 seconds",
			wantKind:     "TimeoutError",
			detailSubstr: "timed out",
		},
		{
			name:         "monitor timeout line",
			output:       "Timeout after 30s",
			wantKind:     "TimeoutError",
			detailSubstr: "30s",
		},
		{
			name:         "bare traceback",
			output:       "Traceback (most recent call last):\n  oops",
			wantKind:     "RuntimeError",
			detailSubstr: "oops",
		},
		{
			name:         "generic failure",
			output:       "build failed\nsee log",
			wantKind:     "Failure",
			detailSubstr: "see log",
		},
		{
			name:         "fallback",
			output:       "Process exited with code 3",
			wantKind:     "Error",
			detailSubstr: "exited with code 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, detail := ClassifyError(tt.output)
			assert.Equal(t, tt.wantKind, kind)
			assert.Contains(t, detail, tt.detailSubstr)
		})
	}
}

func TestClassifyError_ExceptionDetailIsTailLine(t *testing.T) {
	out := "Traceback (most recent call last):\n  File \"main.py\", line 3, in <module>\n    int('x')\nValueError: invalid literal for int() with base 10: 'x'\n"
	kind, detail := ClassifyError(out)
	assert.Equal(t, "ValueError", kind)
	assert.Equal(t, "ValueError: invalid literal for int() with base 10: 'x'", detail)

	kind, detail = ClassifyError("KeyError: 'a'\ncleanup done\n")
	assert.Equal(t, "KeyError", kind)
	assert.Equal(t, "cleanup done", detail)
}

func TestClassifyError_FallbackTruncates(t *testing.T) {
	out := strings.Repeat("x", 500)
	kind, detail := ClassifyError(out)
	assert.Equal(t, "Error", kind)
	assert.Len(t, detail, 200)
}
