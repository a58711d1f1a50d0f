package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/dailyplan/pkg/model"
)

const untitledEvent = "(无标题)"

var weekdays = [...]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

// FormatEvents renders the schedule heading followed by FormatDays.
func (f *Formatter) FormatEvents(events []model.CalendarEvent, from time.Time, days int) string {
	return "近日行程：\n\n" + f.FormatDays(events, from, days)
}

// FormatDays renders one section per local day, starting on the day of
// from, for the given number of days. Days without events are kept and
// marked as empty. An event appears under every day its interval touches.
func (f *Formatter) FormatDays(events []model.CalendarEvent, from time.Time, days int) string {
	loc := f.loc()
	y, m, d := from.In(loc).Date()

	sorted := append([]model.CalendarEvent(nil), events...)
	model.SortEvents(sorted)

	var b strings.Builder
	for i := 0; i < days; i++ {
		dayStart := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		dayEnd := time.Date(y, m, d+i+1, 0, 0, 0, 0, loc)

		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %s %s\n", dayStart.Format(time.DateOnly), weekdays[dayStart.Weekday()])
		n := 0
		for _, e := range sorted {
			if !onDay(e, dayStart, dayEnd) {
				continue
			}
			b.WriteString(eventLine(e, dayStart, dayEnd, loc))
			n++
		}
		if n == 0 {
			b.WriteString("- 无\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// onDay reports whether e overlaps [dayStart, dayEnd). All-day events carry
// an inclusive end; timed events an exclusive one.
func onDay(e model.CalendarEvent, dayStart, dayEnd time.Time) bool {
	if !e.Start.Before(dayEnd) {
		return false
	}
	if e.AllDay {
		return !e.End.Before(dayStart)
	}
	if e.Start.Equal(e.End) {
		return !e.Start.Before(dayStart)
	}
	return e.End.After(dayStart)
}

func eventLine(e model.CalendarEvent, dayStart, dayEnd time.Time, loc *time.Location) string {
	name := e.Title
	if strings.TrimSpace(name) == "" {
		name = untitledEvent
	}
	if e.Location != "" {
		name += "（" + e.Location + "）"
	}
	if e.AllDay {
		return "- 全天：" + name + "\n"
	}

	start, end := e.Start, e.End
	if start.Before(dayStart) {
		start = dayStart
	}
	endText := ""
	if !end.Before(dayEnd) {
		endText = "24:00"
	} else {
		endText = end.In(loc).Format("15:04")
	}
	return fmt.Sprintf("- %s - %s %s\n", start.In(loc).Format("15:04"), endText, name)
}
