package util

import (
	"time"
)

// CalendarDate returns the calendar day t falls on in loc, as midnight UTC.
// A nil loc means UTC.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// UnixDate is CalendarDate for a unix timestamp seen from a fixed UTC offset in seconds.
func UnixDate(ts int64, offset int) time.Time {
	return CalendarDate(time.Unix(ts, 0), time.FixedZone("", offset))
}

// NextCalendarDay returns the following day. Weekends and holidays are not skipped.
func NextCalendarDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}

// ParseTime tries RFC3339, RFC3339Nano, and a plain date. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
