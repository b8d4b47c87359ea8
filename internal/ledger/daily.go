package ledger

import (
	"fmt"
	"time"
)

// ResetSchedule is the local wall-clock time at which the daily window rolls over.
type ResetSchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// CurrentBoundary returns the most recent reset instant at or before now.
func (s ResetSchedule) CurrentBoundary(now time.Time) time.Time {
	local := now.In(s.Location)
	b := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if local.Before(b) {
		b = time.Date(local.Year(), local.Month(), local.Day()-1, s.Hour, s.Minute, 0, 0, s.Location)
	}
	return b
}

// NextBoundary returns the reset instant following the current one. Calendar days,
// not 24h steps, so DST transitions keep the wall-clock time.
func (s ResetSchedule) NextBoundary(now time.Time) time.Time {
	b := s.CurrentBoundary(now)
	return time.Date(b.Year(), b.Month(), b.Day()+1, s.Hour, s.Minute, 0, 0, s.Location)
}

// Day is the calendar date of now in the schedule's zone.
func (s ResetSchedule) Day(now time.Time) string {
	return now.In(s.Location).Format("2006-01-02")
}

// FormatWait renders d as floored hours and minutes, e.g. "5h 12m".
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}
