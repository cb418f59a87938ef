package domain

import "time"

// Slot is a daily reminder time, identified by its "HH:MM" label.
type Slot struct {
	Minutes int // minutes from midnight (0..1439)
}

// String returns the slot label, e.g. "08:00". Labels key LastNotified.
func (s Slot) String() string {
	return FormatMinutes(s.Minutes)
}

// NextFire returns the first wall-clock occurrence of the slot in loc strictly after now.
// Dates are built with time.Date so DST shifts keep the local HH:MM. On a spring-forward
// day a nonexistent local time is normalised forward by time.Date.
func (s Slot) NextFire(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	h, m := s.Minutes/60, s.Minutes%60
	next := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
	for i := 1; !next.After(now); i++ {
		next = time.Date(local.Year(), local.Month(), local.Day()+i, h, m, 0, 0, loc)
	}
	return next
}

// Labels returns the labels of slots in order.
func Labels(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
