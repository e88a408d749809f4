package python

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewToolchainDefaults(t *testing.T) {
	tc := NewToolchain(Config{Interpreter: "python3.11"}, nil)
	assert.Equal(t, "python3.11", tc.Interpreter())
	assert.Equal(t, []string{"python3.11", "-m", "pytest"}, tc.config.Pytest)
	assert.Equal(t, 60*time.Second, tc.config.TestTimeout)
	assert.Equal(t, []string{"python3.11", "-u", "main.py"}, tc.ScriptCommand("main.py"))
}

func TestSummarizePytest(t *testing.T) {
	out := `============================= test session starts ==============================
collected 2 items

tests/test_main.py::test_import_main PASSED                              [ 50%]
tests/test_main.py::test_syntax_valid FAILED                             [100%]

some noise
`
	got := SummarizePytest(out)
	assert.Contains(t, got, "test session starts")
	assert.Contains(t, got, "collected 2 items")
	assert.Contains(t, got, "test_syntax_valid FAILED")
	assert.NotContains(t, got, "some noise")

	assert.Equal(t, "No test output available", SummarizePytest("nothing here"))
}

func TestExtractPytestError(t *testing.T) {
	assert.Equal(t, "E   AssertionError: 1 != 2", extractPytestError("a\nE   AssertionError: 1 != 2\nb"))
	assert.Equal(t, "last line", extractPytestError("first\nlast line\n\n"))
	assert.Equal(t, "unknown error", extractPytestError("\n\n"))
}

func TestParseCompileError(t *testing.T) {
	ce := parseCompileError("2:1:Missing parentheses in call to 'print'. Did you mean print(...)?\n")
	if assert.NotNil(t, ce) {
		assert.Equal(t, 2, ce.Line)
		assert.Equal(t, 1, ce.Column)
		assert.Equal(t, "Missing parentheses in call to 'print'. Did you mean print(...)?", ce.Msg)
		assert.Equal(t, "line 2, column 1: Missing parentheses in call to 'print'. Did you mean print(...)?", ce.Error())
	}

	assert.Equal(t, 3, parseCompileError("noise\n3:5:invalid syntax").Line)
	assert.Nil(t, parseCompileError("Traceback (most recent call last):"))
	assert.Nil(t, parseCompileError(""))
}
