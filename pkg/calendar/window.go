package calendar

import "time"

// Window is a range of whole local days.
type Window struct {
	Start time.Time
	// End is exclusive: midnight after the last day.
	End  time.Time
	Days int
}

// NewWindow returns the window of today plus lookaheadDays, starting at
// local midnight of now.
func NewWindow(now time.Time, loc *time.Location, lookaheadDays int) Window {
	return DaysFrom(now, loc, lookaheadDays+1)
}

// DaysFrom returns the window of days local days starting on the day of
// first.
func DaysFrom(first time.Time, loc *time.Location, days int) Window {
	y, m, d := first.In(loc).Date()
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d+days, 0, 0, 0, 0, loc),
		Days:  days,
	}
}
