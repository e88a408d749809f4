// Package injector gives bare input() calls a visible, ordinal-labelled
// prompt so that piped test input lines up with what the program asks for.
package injector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"spectral/internal/logging"
	"spectral/internal/world"
)

var ordinals = []string{
	"first", "second", "third", "fourth", "fifth",
	"sixth", "seventh", "eighth", "ninth", "tenth",
}

// Ordinal returns the label for the i-th (0-based) prompted input.
func Ordinal(i int) string {
	if i >= 0 && i < len(ordinals) {
		return ordinals[i]
	}
	return fmt.Sprintf("#%d", i+1)
}

const inputFunc = "input"

var (
	assignLine = regexp.MustCompile(`^(\w+)\s*=\s*`)
	emptyArgs  = regexp.MustCompile(`^\(\s*\)$`)
)

// analysis is the result of one parse: every input call site plus the
// prompt generated for each call that has no argument.
type analysis struct {
	lines    []string
	sites    []world.CallSite
	injected map[int]string
}

func analyze(source string) (*analysis, bool) {
	if strings.TrimSpace(source) == "" {
		return nil, false
	}
	src, err := world.ParsePython(context.Background(), []byte(source))
	if err != nil {
		logging.Get(logging.CategoryInjector).Warn("parse failed: %v", err)
		return nil, false
	}
	defer src.Close()

	if src.HasSyntaxErrors() {
		logging.InjectorDebug("source has syntax errors, leaving it unchanged")
		return nil, false
	}

	a := &analysis{
		lines:    strings.Split(source, "\n"),
		sites:    src.CallSites(inputFunc),
		injected: make(map[int]string),
	}
	n := 0
	for i, site := range a.sites {
		if site.HasArgs {
			continue
		}
		a.injected[i] = buildPrompt(Ordinal(n), a.subject(site))
		n++
	}
	return a, true
}

func buildPrompt(ordinal, subject string) string {
	if subject == "" {
		return fmt.Sprintf("Enter %s value: ", ordinal)
	}
	return fmt.Sprintf("Enter %s %s: ", ordinal, subject)
}

// subject infers what the call asks for: its own assignment target, then an
// assignment on the preceding line, then the nearest comment within three
// lines above.
func (a *analysis) subject(site world.CallSite) string {
	if site.Target != "" {
		if s := Humanize(site.Target); s != "" {
			return s
		}
	}

	idx := site.Line - 1
	if idx > 0 && idx-1 < len(a.lines) {
		prev := strings.TrimSpace(a.lines[idx-1])
		if m := assignLine.FindStringSubmatch(prev); m != nil {
			if s := Humanize(m[1]); s != "" {
				return s
			}
		}
	}

	for offset := 1; offset <= 3; offset++ {
		j := idx - offset
		if j < 0 || j >= len(a.lines) {
			continue
		}
		line := strings.TrimSpace(a.lines[j])
		if strings.HasPrefix(line, "#") {
			return Humanize(strings.TrimSpace(strings.TrimLeft(line, "#")))
		}
	}
	return ""
}

var (
	leadingNoise  = map[string]bool{"val": true, "num": true, "input": true, "entry": true, "user": true}
	trailingNoise = map[string]bool{"val": true, "num": true, "input": true, "entry": true}
)

// Humanize turns an identifier or comment into prompt words: underscores
// become spaces and filler tokens at either end are dropped.
func Humanize(text string) string {
	words := strings.Fields(strings.ReplaceAll(text, "_", " "))
	if len(words) > 0 && leadingNoise[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) > 0 && trailingNoise[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// InjectPrompts rewrites every argument-less input() call to carry a prompt.
// Source that does not parse, or needs no prompts, is returned unchanged.
func InjectPrompts(source string) string {
	a, ok := analyze(source)
	if !ok || len(a.injected) == 0 {
		return source
	}

	lines := append([]string(nil), a.lines...)
	// Right to left so earlier columns on the same line stay valid.
	for i := len(a.sites) - 1; i >= 0; i-- {
		prompt, ok := a.injected[i]
		if !ok {
			continue
		}
		site := a.sites[i]
		li := site.ArgsLine - 1
		if li < 0 || li >= len(lines) || site.ArgsEnd < 0 {
			continue
		}
		line := lines[li]
		if site.ArgsEnd > len(line) || !emptyArgs.MatchString(line[site.ArgsStart:site.ArgsEnd]) {
			continue
		}
		lines[li] = line[:site.ArgsStart] + "(" + quote(prompt) + ")" + line[site.ArgsEnd:]
	}

	logging.Injector("injected %d prompt(s)", len(a.injected))
	return strings.Join(lines, "\n")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// CountInputCalls returns the number of input calls, or 0 when the source
// does not parse.
func CountInputCalls(source string) int {
	a, ok := analyze(source)
	if !ok {
		return 0
	}
	return len(a.sites)
}

// HasExistingPrompts reports whether any input call already passes a string
// literal prompt.
func HasExistingPrompts(source string) bool {
	a, ok := analyze(source)
	if !ok {
		return false
	}
	for _, site := range a.sites {
		if site.HasLiteral {
			return true
		}
	}
	return false
}

// Prompts returns the prompt each input call will show, in source order:
// the literal when there is one, the raw argument source for computed
// prompts and the injected prompt for bare calls.
func Prompts(source string) []string {
	a, ok := analyze(source)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(a.sites))
	for i, site := range a.sites {
		switch {
		case site.HasLiteral:
			out = append(out, site.Literal)
		case site.HasArgs:
			out = append(out, site.ArgText)
		default:
			out = append(out, a.injected[i])
		}
	}
	return out
}
