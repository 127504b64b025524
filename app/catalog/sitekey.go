package catalog

import (
	"net/url"
	"strings"
)

// NormalizeSiteKey reduces a link to a comparable site identity. Absolute
// URLs lose fragment, query and trailing slashes; anything else is only
// trimmed. The result is always lowercase and the function is idempotent.
func NormalizeSiteKey(link string) string {
	raw := strings.TrimSpace(link)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false

	return strings.ToLower(strings.TrimRight(u.String(), "/"))
}

// SiteHost is the display form of a site key: scheme and "www." removed.
func SiteHost(siteKey string) string {
	host := strings.TrimPrefix(siteKey, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimPrefix(host, "www.")
}

// Hostname returns the host of link without "www.", or "" when link is not
// an absolute URL.
func Hostname(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
