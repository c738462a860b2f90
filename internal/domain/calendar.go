package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	overlapStartLayout = "Jan 02"
	overlapEndLayout   = "Jan 02, 2006"
)

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(val string) (time.Time, error) {
	t, err := time.Parse(DateLayout, val)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// BusinessDays counts Monday through Friday in the inclusive range.
func BusinessDays(start, end time.Time) int {
	start, end = DateOf(start), DateOf(end)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// ValidDateRange requires end >= start and start >= today.
func ValidDateRange(start, end, today time.Time) bool {
	start, end, today = DateOf(start), DateOf(end), DateOf(today)
	return !end.Before(start) && !start.Before(today)
}

// OverlapMessage describes the request that blocks a new date range.
func OverlapMessage(existing *Request) string {
	return fmt.Sprintf("This conflicts with Request #%d (%s - %s)",
		existing.ID,
		existing.StartDate.Format(overlapStartLayout),
		existing.EndDate.Format(overlapEndLayout))
}
