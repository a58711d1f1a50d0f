package model

import (
	"sort"
	"time"
)

// CalendarEvent is a normalized calendar entry. All-day events span the
// whole local day: Start is 00:00:00 and End is 23:59:59 of the last day.
type CalendarEvent struct {
	Title    string
	Location string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Calendar string
}

// SortEvents orders timed events before all-day events, then by start time.
// Ties keep a stable order by title.
func SortEvents(events []CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.AllDay != b.AllDay {
			return !a.AllDay
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Title < b.Title
	})
}
