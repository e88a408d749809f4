package monitor

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorKeywords mark a line of output as an error, compared case-insensitively.
var ErrorKeywords = []string{
	"Error",
	"Exception",
	"Traceback",
	"Failed",
	"SyntaxError",
	"ImportError",
	"RuntimeError",
	"TypeError",
	"ValueError",
	"NameError",
	"AttributeError",
	"KeyError",
	"ConnectionError",
	"TimeoutError",
	"PermissionError",
	"FileNotFoundError",
	"ModuleNotFoundError",
}

var lowerKeywords = func() []string {
	out := make([]string, len(ErrorKeywords))
	for i, k := range ErrorKeywords {
		out[i] = strings.ToLower(k)
	}
	return out
}()

// IsErrorLine reports whether line contains any error keyword.
func IsErrorLine(line string) bool {
	l := strings.ToLower(line)
	for _, k := range lowerKeywords {
		if strings.Contains(l, k) {
			return true
		}
	}
	return false
}

// ValidateOutput checks output against a regular expression. An empty
// pattern always validates.
func ValidateOutput(output, pattern string) (bool, string) {
	if pattern == "" {
		return true, ""
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid validation pattern: %v", err)
	}
	if re.MatchString(output) {
		return true, ""
	}
	return false, "Output does not match expected pattern: " + pattern
}

// classifier inspects output and reports a kind and detail when it applies.
type classifier func(output string, lines []string) (kind, detail string, ok bool)

// classifiers run in order; the first match wins.
var classifiers = []classifier{
	classifyBracketCode,
	classifyExceptionName,
	classifyTimeout,
	classifyGeneric,
}

var (
	winErrorRe  = regexp.MustCompile(`\[WinError \d+\]`)
	errnoRe     = regexp.MustCompile(`\[Errno \d+\]`)
	exceptionRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*(?:Error|Exception))\b`)
	timeoutRe   = regexp.MustCompile(`(?i)timed out|timeout`)
)

// ClassifyError extracts an error kind and a short detail from combined
// process output.
func ClassifyError(output string) (kind, detail string) {
	lines := nonEmptyLines(output)
	for _, c := range classifiers {
		if k, d, ok := c(output, lines); ok {
			return k, d
		}
	}
	return "Error", truncate(output, 200)
}

func classifyBracketCode(_ string, lines []string) (string, string, bool) {
	for _, l := range lines {
		if winErrorRe.MatchString(l) {
			return "WinError", l, true
		}
		if errnoRe.MatchString(l) {
			return "OSError", l, true
		}
	}
	return "", "", false
}

// classifyExceptionName finds the last concrete exception name; a traceback
// ends with the exception that was actually raised. The detail is the tail
// line of the output, which is the second-to-last line when the output ends
// with a newline.
func classifyExceptionName(_ string, lines []string) (string, string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if m := exceptionRe.FindStringSubmatch(lines[i]); m != nil {
			return m[1], lines[len(lines)-1], true
		}
	}
	return "", "", false
}

func classifyTimeout(_ string, lines []string) (string, string, bool) {
	for _, l := range lines {
		if timeoutRe.MatchString(l) {
			return "TimeoutError", l, true
		}
	}
	return "", "", false
}

func classifyGeneric(output string, lines []string) (string, string, bool) {
	last := ""
	if len(lines) > 0 {
		last = lines[len(lines)-1]
	}
	switch {
	case strings.Contains(output, "Traceback"):
		return "RuntimeError", last, true
	case strings.Contains(output, "Exception"):
		return "Exception", last, true
	case strings.Contains(strings.ToLower(output), "failed"):
		return "Failure", last, true
	}
	return "", "", false
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
