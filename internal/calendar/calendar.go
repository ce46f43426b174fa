// Package calendar maps plan day indexes onto civil dates. Every function is
// pure; dates are midnights in one plan-wide location.
package calendar

import (
	"fmt"
	"time"

	"alcyxob/workout-planner/internal/domain"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// LoadLocation resolves an IANA name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Midnight truncates t to the start of its day as observed in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a date in loc as YYYY-MM-DD.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DateFor returns start + (dayIndex-1) days. AddDate works on the civil date,
// so DST shifts in start's location never move a day across midnight.
func DateFor(start time.Time, dayIndex int) time.Time {
	return start.AddDate(0, 0, dayIndex-1)
}

// DayOfWeek returns the canonical weekday of a date.
func DayOfWeek(date time.Time) domain.Weekday {
	return domain.WeekdayOf(date.Weekday())
}

// WeekNumber is ceil(dayIndex/7) for 1-based day indexes.
func WeekNumber(dayIndex int) int {
	return (dayIndex + 6) / 7
}

// DayIndexOf is the inverse of DateFor: the 1-based index of date relative to
// start. Both must be midnights in the same location.
func DayIndexOf(start, date time.Time) int {
	y1, m1, d1 := start.Date()
	y2, m2, d2 := date.Date()
	a := time.Date(y1, m1, d1, 12, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) + 1
}
