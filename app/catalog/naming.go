package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CleanName applies NFKC and collapses whitespace.
func CleanName(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// EnsureName repairs a missing or placeholder name from the first category
// and the website host.
func EnsureName(name string, categories []string, website string) string {
	name = CleanName(name)
	if name != "" && name != PlaceholderName {
		return name
	}

	host := Hostname(website)
	if len(categories) > 0 && categories[0] != "" {
		title := cases.Title(language.Und).String(strings.ReplaceAll(categories[0], "_", " "))
		if host != "" {
			return title + " – " + host
		}
		return title
	}
	if host != "" {
		return host
	}
	return PlaceholderName
}
