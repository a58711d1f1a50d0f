package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/teambition/rrule-go"

	"github.com/harrisonrobin/dailyplan/pkg/model"
)

const untitled = "(无标题)"

// vevent is a VEVENT with its times resolved. end is exclusive; for
// all-day events both bounds sit on local midnight.
type vevent struct {
	title    string
	location string
	start    time.Time
	end      time.Time
	allDay   bool
	rrule    string
	exdates  []time.Time
}

// parseObject turns one calendar object into the events that overlap w.
// Recurring events are expanded inside the window. Events that cannot be
// read are reported and skipped.
func (s *Source) parseObject(obj caldav.CalendarObject, calendar string, w Window) ([]model.CalendarEvent, []error) {
	if obj.Data == nil {
		return nil, []error{errors.New("empty calendar data")}
	}

	components := obj.Data.Events()

	// Modified instances of a recurring event replace the generated ones.
	var overridden []time.Time
	for _, ev := range components {
		if prop := ev.Props.Get(ical.PropRecurrenceID); prop != nil {
			if t, err := s.dateTime(prop); err == nil {
				overridden = append(overridden, t)
			}
		}
	}

	var (
		events []model.CalendarEvent
		errs   []error
	)
	for _, ev := range components {
		v, err := s.parseEvent(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if v.rrule != "" {
			v.exdates = append(v.exdates, overridden...)
		}

		starts, err := occurrences(v, w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		length := v.end.Sub(v.start)
		for _, start := range starts {
			end := start.Add(length)
			if v.allDay {
				// Day arithmetic keeps all-day spans intact across DST changes.
				end = start.AddDate(0, 0, v.days())
			}
			if !overlaps(start, end, w) {
				continue
			}
			events = append(events, s.toModel(v, start, end, calendar))
		}
	}
	return events, errs
}

func (s *Source) parseEvent(ev ical.Event) (vevent, error) {
	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return vevent{}, errors.New("event has no DTSTART")
	}
	start, err := s.dateTime(startProp)
	if err != nil {
		return vevent{}, fmt.Errorf("invalid DTSTART: %w", err)
	}

	v := vevent{allDay: startProp.ValueType() == ical.ValueDate}
	if v.allDay {
		start = s.midnight(start)
	}
	v.start = start

	if endProp := ev.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		end, err := s.dateTime(endProp)
		if err != nil {
			return vevent{}, fmt.Errorf("invalid DTEND: %w", err)
		}
		if v.allDay {
			end = s.midnight(end)
		}
		v.end = end
	}
	if !v.end.After(v.start) {
		// A missing or inverted DTEND covers the start day for all-day
		// events and nothing for timed ones.
		v.end = v.start
		if v.allDay {
			v.end = v.start.AddDate(0, 0, 1)
		}
	}

	if v.title, err = ev.Props.Text(ical.PropSummary); err != nil {
		return vevent{}, fmt.Errorf("invalid SUMMARY: %w", err)
	}
	if v.title == "" {
		v.title = untitled
	}
	if v.location, err = ev.Props.Text(ical.PropLocation); err != nil {
		return vevent{}, fmt.Errorf("invalid LOCATION: %w", err)
	}

	if prop := ev.Props.Get(ical.PropRecurrenceRule); prop != nil {
		v.rrule = prop.Value
	}
	for _, prop := range ev.Props.Values(ical.PropExceptionDates) {
		for _, value := range strings.Split(prop.Value, ",") {
			single := prop
			single.Value = strings.TrimSpace(value)
			t, err := s.dateTime(&single)
			if err != nil {
				return vevent{}, fmt.Errorf("invalid EXDATE: %w", err)
			}
			if v.allDay {
				t = s.midnight(t)
			}
			v.exdates = append(v.exdates, t)
		}
	}
	return v, nil
}

// dateTime reads prop in its TZID zone. A TZID the zone database does not
// know, such as a Windows zone name or an id only defined by a VTIMEZONE,
// is read in the configured zone instead.
func (s *Source) dateTime(prop *ical.Prop) (time.Time, error) {
	t, err := prop.DateTime(s.loc)
	tzid := prop.Params.Get(ical.ParamTimezoneID)
	if err == nil || tzid == "" {
		return t, err
	}

	local := *prop
	local.Params = make(ical.Params, len(prop.Params))
	for k, v := range prop.Params {
		if k != ical.ParamTimezoneID {
			local.Params[k] = v
		}
	}
	t, localErr := local.DateTime(s.loc)
	if localErr != nil {
		return time.Time{}, err
	}
	s.log.Warn().
		Str("tzid", tzid).
		Str("zone", s.loc.String()).
		Msg("unknown TZID, reading time in configured zone")
	return t, nil
}

func (s *Source) midnight(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// days is the number of local days an all-day event covers.
func (v vevent) days() int {
	n := 0
	for d := v.start; d.Before(v.end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func (s *Source) toModel(v vevent, start, end time.Time, calendar string) model.CalendarEvent {
	e := model.CalendarEvent{
		Title:    v.title,
		Location: v.location,
		Start:    start.In(s.loc),
		End:      end.In(s.loc),
		AllDay:   v.allDay,
		Calendar: calendar,
	}
	if v.allDay {
		e.End = e.End.Add(-time.Second)
	}
	return e
}

// occurrences lists the start times of v that may fall into w.
func occurrences(v vevent, w Window) ([]time.Time, error) {
	if v.rrule == "" {
		return []time.Time{v.start}, nil
	}

	opt, err := rrule.StrToROption(v.rrule)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", v.rrule, err)
	}
	opt.Dtstart = v.start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", v.rrule, err)
	}

	var starts []time.Time
	for _, t := range rule.Between(w.Start.Add(-v.end.Sub(v.start)), w.End, true) {
		if !excluded(t, v.exdates) {
			starts = append(starts, t)
		}
	}
	return starts, nil
}

func excluded(t time.Time, exdates []time.Time) bool {
	for _, ex := range exdates {
		if ex.Equal(t) {
			return true
		}
	}
	return false
}

// overlaps reports whether [start, end) intersects the window. Zero-length
// events count when their instant lies inside it.
func overlaps(start, end time.Time, w Window) bool {
	if !start.Before(w.End) {
		return false
	}
	if start.Equal(end) {
		return !start.Before(w.Start)
	}
	return end.After(w.Start)
}
