// Package articulation turns free-form replies from the text-generation
// service into something spectral can use: JSON payloads recovered with a
// tolerant extraction cascade, and executable code stripped of markdown.
package articulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"spectral/internal/logging"
)

// ErrNoJSON is returned when no extractor recovers a decodable object.
var ErrNoJSON = errors.New("no valid JSON found in response")

// ParseMethod records which extractor produced a payload.
type ParseMethod string

const (
	MethodFencedJSON ParseMethod = "fenced_json"
	MethodFencedAny  ParseMethod = "fenced_any"
	MethodBraceSpan  ParseMethod = "brace_span"
)

// Extractor pulls a JSON candidate out of text. ok is false when the
// extractor does not apply.
type Extractor struct {
	Method  ParseMethod
	Extract func(text string) (candidate string, ok bool)
}

var (
	fencedJSONRe = regexp.MustCompile("(?is)```json[ \\t]*\\n(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)```")
)

// DefaultExtractors is the cascade: a ```json fence, any fence, then the
// first balanced brace span (falling back to first '{' through last '}').
var DefaultExtractors = []Extractor{
	{Method: MethodFencedJSON, Extract: fencedJSON},
	{Method: MethodFencedAny, Extract: fencedAny},
	{Method: MethodBraceSpan, Extract: braceSpan},
}

func fencedJSON(text string) (string, bool) {
	m := fencedJSONRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func fencedAny(text string) (string, bool) {
	m := fencedAnyRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func braceSpan(text string) (string, bool) {
	for c := range objectSpans(text) {
		if json.Valid([]byte(c)) {
			return c, true
		}
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1], true
	}
	return "", false
}

// ExtractJSON returns the first candidate produced by the cascade, without
// validating it.
func ExtractJSON(text string) (string, ParseMethod, error) {
	text = strings.TrimSpace(text)
	for _, ex := range DefaultExtractors {
		if c, ok := ex.Extract(text); ok {
			return c, ex.Method, nil
		}
	}
	return "", "", ErrNoJSON
}

// DecodeJSON decodes the first candidate that unmarshals into v. Each
// extractor is tried in order; a candidate that fails to decode moves the
// cascade on to the next extractor.
func DecodeJSON(text string, v any) (ParseMethod, error) {
	text = strings.TrimSpace(text)
	var lastErr error
	for _, ex := range DefaultExtractors {
		c, ok := ex.Extract(text)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			logging.LLMDebug("extractor %s produced undecodable candidate: %v", ex.Method, err)
			lastErr = err
			continue
		}
		return ex.Method, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return "", ErrNoJSON
}
