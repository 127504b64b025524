package view

import (
	"fmt"
	"html"
	"strings"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

func openBadge(open *bool) string {
	if open == nil {
		return ""
	}
	if *open {
		return `<span class="badge ok">Öppet</span>`
	}
	return `<span class="badge warn">Stängt</span>`
}

func linkBadge(ok *bool) string {
	if ok == nil {
		return ""
	}
	if *ok {
		return `<span class="badge ok">Länk OK</span>`
	}
	return `<span class="badge err">Länk fel</span>`
}

const duplicateBadge = `<span class="badge dup">Dublett</span>`

const bookableBadge = `<span class="badge book">Boka</span>`

func categoryBadge(categories *catalog.CategoryTable, key string) string {
	c := categories.Lookup(key)
	return fmt.Sprintf(`<span class="badge" style="background:%s">%s%s</span>`,
		html.EscapeString(c.Color), categories.IconHTML(key, 12), html.EscapeString(c.Label))
}

func categoryLabels(categories *catalog.CategoryTable, keys []string) string {
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = html.EscapeString(categories.Label(k))
	}
	return strings.Join(labels, ", ")
}

func outboundLink(link, label, class string) string {
	if link == "" {
		return ""
	}
	classAttr := ""
	if class != "" {
		classAttr = fmt.Sprintf(` class="%s"`, class)
	}
	return fmt.Sprintf(`<a%s href="%s" target="_blank" rel="noopener">%s</a>`,
		classAttr, html.EscapeString(link), html.EscapeString(label))
}

// joinNonEmpty joins the non-empty parts with a single space.
func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
