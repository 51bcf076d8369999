package dhan

import (
	"regexp"
	"sort"
	"time"
)

var expiryPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const expiryLayout = "2006-01-02"

// NearestExpiry picks the earliest YYYY-MM-DD date on or after today's date
// in today's location. Malformed entries are ignored.
func NearestExpiry(dates []string, today time.Time) (string, error) {
	y, m, d := today.Date()
	floor := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	valid := make([]string, 0, len(dates))
	for _, s := range dates {
		if !expiryPattern.MatchString(s) {
			continue
		}
		t, err := time.Parse(expiryLayout, s)
		if err != nil || t.Before(floor) {
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		return "", ErrNoExpiry
	}

	// zero-padded ISO dates sort lexically
	sort.Strings(valid)
	return valid[0], nil
}

// WeeklyExpiry returns the next occurrence of weekday, rolling to the
// following week once the cutoff hour has passed on expiry day itself.
func WeeklyExpiry(now time.Time, weekday time.Weekday, cutoffHour int) string {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 && now.Hour() >= cutoffHour {
		days = 7
	}
	return now.AddDate(0, 0, days).Format(expiryLayout)
}
