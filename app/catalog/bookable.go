package catalog

import "strings"

var bookingHints = []string{
	"bokun.io",
	"fareharbor.com",
	"checkfront.com",
	"trekksoft.com",
	"getyourguide.com",
	"timecenter.se",
	"boka.se",
	"bokadirekt.se",
	"enkelbokning.se",
	"billetto",
	"tickster",
	"eventbrite",
	"/boka",
	"/booking",
	// Swedish sites often just say "boka"
	"boka",
	"booking",
}

// IsBookingURL reports whether link points at a booking system or page.
func IsBookingURL(link string) bool {
	u := strings.ToLower(strings.TrimSpace(link))
	if u == "" {
		return false
	}
	for _, hint := range bookingHints {
		if strings.Contains(u, hint) {
			return true
		}
	}
	return false
}
