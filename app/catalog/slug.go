package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const defaultSlug = "plats"

// Slugify builds a lowercase ASCII slug. Diacritics are folded before
// non-alphanumeric runs collapse to a single dash.
func Slugify(s string) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFD.String(strings.ToLower(s)))

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return defaultSlug
	}
	return slug
}
