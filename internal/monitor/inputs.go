package monitor

import (
	"fmt"
	"regexp"
	"strings"
)

// inputRule maps prompt vocabulary to a fixed synthetic answer. Words of
// three letters or fewer must match a whole token.
type inputRule struct {
	words []string
	value string
}

var inputRules = []inputRule{
	{[]string{"name", "user", "username", "who"}, "TestUser"},
	{[]string{"age", "years", "old"}, "25"},
	{[]string{"number", "num", "count", "quantity", "how many", "integer"}, "42"},
	{[]string{"email", "address"}, "test@example.com"},
	{[]string{"phone", "tel"}, "555-1234"},
	{[]string{"city", "location", "where"}, "New York"},
	{[]string{"country", "nation"}, "USA"},
	{[]string{"date", "when"}, "2024-01-15"},
	{[]string{"price", "cost", "amount"}, "99.99"},
	{[]string{"yes", "confirm", "ok"}, "y"},
	{[]string{"no", "cancel"}, "n"},
	{[]string{"choice", "select", "option"}, "1"},
	{[]string{"color", "colour"}, "blue"},
	{[]string{"food", "eat"}, "pizza"},
	{[]string{"animal", "pet"}, "dog"},
	{[]string{"movie", "film"}, "action"},
	{[]string{"music", "song"}, "rock"},
	{[]string{"sport", "game"}, "football"},
	{[]string{"hobby", "interest"}, "reading"},
}

var placeholders = []string{
	"test_first_value",
	"test_second_value",
	"test_third_value",
	"test_fourth_value",
	"test_fifth_value",
}

var tokenRe = regexp.MustCompile(`[a-z]+`)

// SyntheticInputs returns one answer per prompt. Known subjects get fixed
// values; anything else cycles through a placeholder pool, suffixed with
// its position once the pool is exhausted.
func SyntheticInputs(prompts []string) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		if v, ok := matchRule(p); ok {
			out[i] = v
			continue
		}
		v := placeholders[i%len(placeholders)]
		if i >= len(placeholders) {
			v = fmt.Sprintf("%s_%d", v, i+1)
		}
		out[i] = v
	}
	return out
}

func matchRule(prompt string) (string, bool) {
	lower := strings.ToLower(prompt)
	tokens := make(map[string]bool)
	for _, t := range tokenRe.FindAllString(lower, -1) {
		tokens[t] = true
	}
	for _, r := range inputRules {
		for _, w := range r.words {
			if len(w) <= 3 {
				if tokens[w] {
					return r.value, true
				}
				continue
			}
			if strings.Contains(lower, w) {
				return r.value, true
			}
		}
	}
	return "", false
}
