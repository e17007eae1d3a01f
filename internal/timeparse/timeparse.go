// Package timeparse resolves the dual time formats accepted on every
// operator request (§6) against a single configured IANA zone.
//
// The source data's timestamps carry no timezone marker (Open Question,
// spec.md §9): this package picks one interpretation — a fixed, configured
// time.Location — and applies it consistently to both parsing and
// formatting, the way internal/units/timezone.go validates and resolves
// zones against the system tz database in the teacher repo.
package timeparse

import (
	"fmt"
	"time"
)

// DefaultZone is the interpretation applied when no zone is configured:
// the source corpus (Beijing taxi GPS logs) is naive local time in China.
const DefaultZone = "Asia/Shanghai"

const (
	layoutShort = "2006-01-02T15:04"
	layoutLong  = "2006-01-02 15:04:05"
)

// IsValidZone reports whether tz can be loaded from the system tz database.
func IsValidZone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// Location loads the configured zone, falling back to DefaultZone when tz
// is empty.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		tz = DefaultZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseTimestamp accepts "YYYY-MM-DDTHH:MM" or "YYYY-MM-DD HH:MM:SS" and
// returns the epoch-seconds value in loc. Any other form is rejected, per
// spec.md §6.
func ParseTimestamp(s string, loc *time.Location) (float64, error) {
	if t, err := time.ParseInLocation(layoutShort, s, loc); err == nil {
		return float64(t.Unix()), nil
	}
	if t, err := time.ParseInLocation(layoutLong, s, loc); err == nil {
		return float64(t.Unix()), nil
	}
	return 0, fmt.Errorf("cannot parse time string %q (expected %q or %q)", s, layoutShort, layoutLong)
}

// FormatTimestamp renders epoch seconds back into the long form, in loc.
func FormatTimestamp(epochSeconds float64, loc *time.Location) string {
	return time.Unix(int64(epochSeconds), 0).In(loc).Format(layoutLong)
}
