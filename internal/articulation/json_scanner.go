package articulation

import "iter"

// objectSpans yields each balanced top-level {...} span of a reply in order,
// skipping braces that sit inside JSON strings. Unclosed spans are dropped.
// Scanning bytes is enough: every delimiter is ASCII and UTF-8 continuation
// bytes never are.
func objectSpans(reply string) iter.Seq[string] {
	return func(yield func(string) bool) {
		depth, open := 0, -1
		quoted, escaped := false, false

		for i := 0; i < len(reply); i++ {
			switch c := reply[i]; {
			case escaped:
				escaped = false
			case quoted:
				escaped = c == '\\'
				quoted = c != '"'
			case c == '"':
				quoted = true
			case c == '{':
				if depth == 0 {
					open = i
				}
				depth++
			case c == '}' && depth > 0:
				depth--
				if depth == 0 && !yield(reply[open:i+1]) {
					return
				}
			}
		}
	}
}
