package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	weekdayIndex = map[string]int{"Mo": 0, "Tu": 1, "We": 2, "Th": 3, "Fr": 4, "Sa": 5, "Su": 6}
	ruleRe       = regexp.MustCompile(`^([A-Za-z,\-]+)\s+(.+)$`)
	spanRe       = regexp.MustCompile(`^(\d{2}:\d{2})-(\d{2}:\d{2})$`)
)

// IsOpenNow evaluates hours in loc. A nil loc means time.Local.
func IsOpenNow(hours string, loc *time.Location) *bool {
	if loc == nil {
		loc = time.Local
	}
	return IsOpenAt(hours, time.Now().In(loc))
}

// IsOpenAt evaluates a subset of the OSM opening_hours syntax: "24/7",
// semicolon separated rules like "Mo-Fr 08:00-12:00,13:00-17:00" and
// "Su off". It returns nil when the format is not understood.
func IsOpenAt(hours string, now time.Time) *bool {
	hours = strings.TrimSpace(hours)
	if hours == "" {
		return nil
	}
	if strings.EqualFold(hours, "24/7") {
		return boolPtr(true)
	}

	today := (int(now.Weekday()) + 6) % 7
	current := now.Hour()*3600 + now.Minute()*60 + now.Second()

	anyRule := false
	for _, rule := range strings.Split(hours, ";") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}

		if strings.HasSuffix(rule, " off") {
			if containsDay(expandDays(strings.TrimSpace(strings.TrimSuffix(rule, " off"))), today) {
				anyRule = true
			}
			continue
		}

		m := ruleRe.FindStringSubmatch(rule)
		if m == nil {
			continue
		}
		days := expandDays(m[1])

		validSpan := false
		for _, span := range strings.Split(m[2], ",") {
			sm := spanRe.FindStringSubmatch(strings.TrimSpace(span))
			if sm == nil {
				continue
			}
			start, ok1 := parseClock(sm[1])
			end, ok2 := parseClock(sm[2])
			if !ok1 || !ok2 {
				continue
			}
			validSpan = true
			if containsDay(days, today) && start <= current && current <= end {
				return boolPtr(true)
			}
		}
		if validSpan {
			anyRule = true
		}
	}

	if anyRule {
		return boolPtr(false)
	}
	return nil
}

func expandDays(list string) []int {
	var days []int
	seen := make(map[int]bool)
	add := func(d int) {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, okA := weekdayIndex[strings.TrimSpace(from)]
			b, okB := weekdayIndex[strings.TrimSpace(to)]
			if !okA || !okB {
				continue
			}
			// Ranges may wrap past Sunday
			for d := a; ; d = (d + 1) % 7 {
				add(d)
				if d == b {
					break
				}
			}
			continue
		}
		if d, ok := weekdayIndex[part]; ok {
			add(d)
		}
	}
	return days
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// parseClock returns seconds since midnight for "HH:MM".
func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*3600 + m*60, true
}
