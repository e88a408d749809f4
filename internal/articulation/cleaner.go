package articulation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"spectral/internal/logging"
	"spectral/internal/world"
)

// ErrEmptyCode is returned when cleaning leaves nothing to execute.
var ErrEmptyCode = errors.New("generated code is empty")

var (
	codeBlockRe    = regexp.MustCompile("```(?:[\\w+-]+)?[ \\t]*\\n([\\s\\S]*?)```")
	openingFenceRe = regexp.MustCompile("^```(?:[\\w+-]*[ \\t]*\\n)?")
	closingFenceRe = regexp.MustCompile("\\s*```$")
)

var preambles = []string{"Here's the code:", "Here is the code:", "Code:", "Answer:"}

// CleanCode strips markdown fences and leading prose from generated code.
func CleanCode(code string) (string, error) {
	text := strings.TrimSpace(code)
	if text == "" {
		return "", ErrEmptyCode
	}

	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		logging.LLMDebug("extracted code from markdown block")
		text = m[1]
	} else {
		text = openingFenceRe.ReplaceAllString(text, "")
		text = closingFenceRe.ReplaceAllString(text, "")
		text = stripPreamble(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCode
	}
	return text, nil
}

func stripPreamble(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, p := range preambles {
		if strings.HasPrefix(trimmed, p) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, p))
		}
	}
	return text
}

// DetectCodeIssues lists reasons the code looks incomplete or malformed.
// An empty result does not mean the code runs.
func DetectCodeIssues(ctx context.Context, code string) []string {
	var issues []string
	if len(code) < 10 {
		issues = append(issues, "code suspiciously short (< 10 chars)")
	}
	if !strings.Contains(strings.TrimSpace(code), "\n") {
		issues = append(issues, "code is a single line (likely incomplete)")
	}
	if strings.Contains(code, "```") {
		issues = append(issues, "markdown formatting not fully removed")
	}
	head := code
	if len(head) > 50 {
		head = head[:50]
	}
	for _, p := range preambles {
		if strings.Contains(head, p) {
			issues = append(issues, fmt.Sprintf("generation artifact detected: %q", p))
		}
	}

	src, err := world.ParsePython(ctx, []byte(code))
	if err != nil {
		return append(issues, fmt.Sprintf("parse failed: %v", err))
	}
	defer src.Close()
	for _, e := range src.SyntaxErrors() {
		issues = append(issues, "syntax error: "+e.String())
	}
	return issues
}
