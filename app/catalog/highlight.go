package catalog

import (
	"html"
	"strings"
	"unicode"
)

const highlightOpen = `<span class="hl">`
const highlightClose = `</span>`

// Highlight escapes name and wraps every case-insensitive, non-overlapping
// occurrence of query. The query is expected in normalized form.
func Highlight(name, query string) string {
	query = NormalizeQuery(query)
	if query == "" {
		return html.EscapeString(name)
	}

	src := []rune(name)
	lower := make([]rune, len(src))
	for i, r := range src {
		lower[i] = unicode.ToLower(r)
	}
	needle := []rune(query)

	var b strings.Builder
	start := 0
	for i := 0; i+len(needle) <= len(lower); {
		if runesEqual(lower[i:i+len(needle)], needle) {
			b.WriteString(html.EscapeString(string(src[start:i])))
			b.WriteString(highlightOpen)
			b.WriteString(html.EscapeString(string(src[i : i+len(needle)])))
			b.WriteString(highlightClose)
			i += len(needle)
			start = i
			continue
		}
		i++
	}
	b.WriteString(html.EscapeString(string(src[start:])))

	return b.String()
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
