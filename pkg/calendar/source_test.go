package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/dailyplan/pkg/config"
	"github.com/harrisonrobin/dailyplan/pkg/model"
)

type fakeDAV struct {
	calendars []caldav.Calendar
	objects   map[string][]caldav.CalendarObject
	failing   map[string]error
	queried   []string
}

func (f *fakeDAV) FindCurrentUserPrincipal(context.Context) (string, error) {
	return "/principal/", nil
}

func (f *fakeDAV) FindCalendarHomeSet(_ context.Context, principal string) (string, error) {
	return principal + "calendars/", nil
}

func (f *fakeDAV) FindCalendars(context.Context, string) ([]caldav.Calendar, error) {
	return append([]caldav.Calendar(nil), f.calendars...), nil
}

func (f *fakeDAV) QueryCalendar(_ context.Context, path string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	f.queried = append(f.queried, path)
	if err := f.failing[path]; err != nil {
		return nil, err
	}
	return f.objects[path], nil
}

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func calendarConfig(t *testing.T, mutate func(*config.CalendarConfig)) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Dida: config.DidaConfig{Token: "x", ReadTimeout: time.Second, WriteTimeout: time.Second},
		LLM:  config.LLMConfig{Timeout: time.Second},
		Calendar: config.CalendarConfig{
			Enable:    true,
			Provider:  config.ProviderICloud,
			ServerURL: "https://caldav.example.com/",
			Username:  "me@example.com",
			Password:  "app-password",
			MaxEvents: 50,
			Timeout:   time.Second,
		},
		Log:      config.LogConfig{Format: config.LogFormatConsole},
		Timezone: "Asia/Shanghai",
	}
	if mutate != nil {
		mutate(&cfg.Calendar)
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestSource(t *testing.T, cfg *config.Config, dav *fakeDAV) *Source {
	t.Helper()
	s := NewSource(cfg, zerolog.Nop())
	s.dial = func(context.Context) (davClient, error) {
		if dav == nil {
			t.Fatal("calendar source dialed the server")
		}
		return dav, nil
	}
	return s
}

// ics decodes an iCalendar document made of the given VEVENT bodies.
func ics(t *testing.T, events ...string) *ical.Calendar {
	t.Helper()
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//dailyplan//test//EN"}
	for i, ev := range events {
		lines = append(lines, "BEGIN:VEVENT", "UID:event-"+string(rune('a'+i)), "DTSTAMP:20261001T000000Z")
		lines = append(lines, strings.Split(strings.TrimSpace(ev), "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")

	cal, err := ical.NewDecoder(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")).Decode()
	require.NoError(t, err)
	return cal
}

func object(t *testing.T, path string, events ...string) caldav.CalendarObject {
	return caldav.CalendarObject{Path: path, Data: ics(t, events...)}
}

var testNow = time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC) // 10:00 in Shanghai

func TestNewWindow(t *testing.T) {
	loc := shanghai(t)

	w := NewWindow(testNow, loc, 2)
	assert.Equal(t, 3, w.Days)
	assert.True(t, w.Start.Equal(time.Date(2026, 10, 15, 0, 0, 0, 0, loc)))
	assert.True(t, w.End.Equal(time.Date(2026, 10, 18, 0, 0, 0, 0, loc)))

	// 23:30 UTC is already the next day in Shanghai.
	w = NewWindow(time.Date(2026, 10, 15, 23, 30, 0, 0, time.UTC), loc, 0)
	assert.Equal(t, 1, w.Days)
	assert.True(t, w.Start.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, loc)))
}

func TestFetchEventsDisabledDoesNotDial(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.Enable = false })
	s := newTestSource(t, cfg, nil)

	assert.False(t, s.Enabled())
	_, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchEventsUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.CalendarConfig)
	}{
		{"unsupported provider", func(c *config.CalendarConfig) { c.Provider = "google" }},
		{"missing username", func(c *config.CalendarConfig) { c.Username = "" }},
		{"missing password", func(c *config.CalendarConfig) { c.Password = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := calendarConfig(t, tt.mutate)
			s := newTestSource(t, cfg, nil)

			_, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestFetchEventsDialFailure(t *testing.T) {
	cfg := calendarConfig(t, nil)
	s := NewSource(cfg, zerolog.Nop())
	s.dial = func(context.Context) (davClient, error) { return nil, errors.New("bad url") }

	_, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func twoCalendars(t *testing.T) *fakeDAV {
	return &fakeDAV{
		calendars: []caldav.Calendar{
			{Path: "/cal/work/", Name: "Work", SupportedComponentSet: []string{"VEVENT"}},
			{Path: "/cal/home/", Name: "Home"},
			{Path: "/cal/reminders/", Name: "Reminders", SupportedComponentSet: []string{"VTODO"}},
		},
		objects: map[string][]caldav.CalendarObject{
			"/cal/work/": {
				object(t, "/cal/work/standup.ics", `
SUMMARY:Standup
LOCATION:Room 1
DTSTART;TZID=Asia/Shanghai:20261015T090000
DTEND;TZID=Asia/Shanghai:20261015T093000`),
				object(t, "/cal/work/offsite.ics", `
SUMMARY:Offsite
DTSTART;VALUE=DATE:20261015
DTEND;VALUE=DATE:20261016`),
			},
			"/cal/home/": {
				object(t, "/cal/home/dinner.ics", `
SUMMARY:Dinner
DTSTART:20261015T110000Z
DTEND:20261015T123000Z`),
			},
		},
	}
}

func TestFetchEvents(t *testing.T) {
	cfg := calendarConfig(t, nil)
	loc := cfg.Location()
	dav := twoCalendars(t)
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 0))
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []string{"/cal/work/", "/cal/home/"}, dav.queried)

	require.Len(t, res.Events, 3)
	assert.Equal(t, model.CalendarEvent{
		Title:    "Standup",
		Location: "Room 1",
		Start:    time.Date(2026, 10, 15, 9, 0, 0, 0, loc),
		End:      time.Date(2026, 10, 15, 9, 30, 0, 0, loc),
		Calendar: "Work",
	}, res.Events[0])

	assert.Equal(t, "Dinner", res.Events[1].Title)
	assert.Equal(t, "Home", res.Events[1].Calendar)
	assert.True(t, res.Events[1].Start.Equal(time.Date(2026, 10, 15, 19, 0, 0, 0, loc)))

	offsite := res.Events[2]
	assert.Equal(t, "Offsite", offsite.Title)
	assert.True(t, offsite.AllDay)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, loc), offsite.Start)
	assert.Equal(t, time.Date(2026, 10, 15, 23, 59, 59, 0, loc), offsite.End)
}

func TestFetchEventsNameFilter(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.Names = []string{"Home"} })
	dav := twoCalendars(t)
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"/cal/home/"}, dav.queried)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Dinner", res.Events[0].Title)
}

func TestFetchEventsUnmatchedNameFilterReadsAll(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.Names = []string{"Nope"} })
	dav := twoCalendars(t)
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"/cal/work/", "/cal/home/"}, dav.queried)
	assert.Len(t, res.Events, 3)
}

func TestFetchEventsSkipsFailingCalendar(t *testing.T) {
	cfg := calendarConfig(t, nil)
	dav := twoCalendars(t)
	dav.failing = map[string]error{"/cal/work/": errors.New("503 service unavailable")}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Dinner", res.Events[0].Title)
}

func TestFetchEventsSkipsBrokenEvent(t *testing.T) {
	cfg := calendarConfig(t, nil)
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/broken.ics", "SUMMARY:No start"),
				object(t, "/cal/a/ok.ics", `
SUMMARY:Fine
DTSTART;TZID=Asia/Shanghai:20261015T140000
DTEND;TZID=Asia/Shanghai:20261015T150000`),
				{Path: "/cal/a/empty.ics"},
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 2)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Fine", res.Events[0].Title)
}

func TestFetchEventsTruncatesToMax(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.MaxEvents = 2 })
	s := newTestSource(t, cfg, twoCalendars(t))

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Standup", res.Events[0].Title)
	assert.Equal(t, "Dinner", res.Events[1].Title)
}

func TestFetchEventsExpandsRecurrence(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.LookaheadDays = 13 })
	loc := cfg.Location()
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/weekly.ics", `
SUMMARY:Weekly review
DTSTART;TZID=Asia/Shanghai:20260105T090000
DTEND;TZID=Asia/Shanghai:20260105T100000
RRULE:FREQ=WEEKLY
EXDATE;TZID=Asia/Shanghai:20261026T090000`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 13))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].Start.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, loc)))
	assert.True(t, res.Events[0].End.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, loc)))
}

func TestFetchEventsRecurrenceOverride(t *testing.T) {
	cfg := calendarConfig(t, nil)
	loc := cfg.Location()
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/gym.ics", `
SUMMARY:Gym
DTSTART;TZID=Asia/Shanghai:20261005T080000
DTEND;TZID=Asia/Shanghai:20261005T090000
RRULE:FREQ=WEEKLY`, `
SUMMARY:Gym (moved)
RECURRENCE-ID;TZID=Asia/Shanghai:20261019T080000
DTSTART;TZID=Asia/Shanghai:20261019T140000
DTEND;TZID=Asia/Shanghai:20261019T150000`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 13))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	assert.Equal(t, "Gym (moved)", res.Events[0].Title)
	assert.True(t, res.Events[0].Start.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, loc)))
	assert.Equal(t, "Gym", res.Events[1].Title)
	assert.True(t, res.Events[1].Start.Equal(time.Date(2026, 10, 26, 8, 0, 0, 0, loc)))
}

func TestFetchEventsUTCExceptionDate(t *testing.T) {
	cfg := calendarConfig(t, nil)
	loc := cfg.Location()
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/sync.ics", `
SUMMARY:Sync
DTSTART;TZID=Asia/Shanghai:20261005T090000
DTEND;TZID=Asia/Shanghai:20261005T093000
RRULE:FREQ=WEEKLY
EXDATE:20261019T010000Z`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 13))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].Start.Equal(time.Date(2026, 10, 26, 9, 0, 0, 0, loc)))
}

func TestFetchEventsExpandsAllDayRecurrence(t *testing.T) {
	cfg := calendarConfig(t, nil)
	loc := cfg.Location()
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/retreat.ics", `
SUMMARY:Retreat
DTSTART;VALUE=DATE:20261001
DTEND;VALUE=DATE:20261003
RRULE:FREQ=WEEKLY`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 13))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	for i, day := range []int{15, 22} {
		e := res.Events[i]
		assert.True(t, e.AllDay)
		assert.True(t, e.Start.Equal(time.Date(2026, 10, day, 0, 0, 0, 0, loc)), "start %v", e.Start)
		assert.True(t, e.End.Equal(time.Date(2026, 10, day+1, 23, 59, 59, 0, loc)), "end %v", e.End)
	}
}

func TestFetchEventsUnknownTZIDUsesConfiguredZone(t *testing.T) {
	cfg := calendarConfig(t, nil)
	loc := cfg.Location()
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/outlook.ics", `
SUMMARY:Review
DTSTART;TZID=China Standard Time:20261015T090000
DTEND;TZID=China Standard Time:20261015T100000`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, loc, 0))
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].Start.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, loc)))
	assert.True(t, res.Events[0].End.Equal(time.Date(2026, 10, 15, 10, 0, 0, 0, loc)))
}

func TestDaysFrom(t *testing.T) {
	loc := shanghai(t)

	w := DaysFrom(time.Date(2026, 10, 8, 23, 0, 0, 0, loc), loc, 7)
	assert.Equal(t, 7, w.Days)
	assert.True(t, w.Start.Equal(time.Date(2026, 10, 8, 0, 0, 0, 0, loc)))
	assert.True(t, w.End.Equal(time.Date(2026, 10, 15, 0, 0, 0, 0, loc)))
}

func TestFetchEventsDropsEventsOutsideWindow(t *testing.T) {
	cfg := calendarConfig(t, nil)
	dav := &fakeDAV{
		calendars: []caldav.Calendar{{Path: "/cal/a/", Name: "A"}},
		objects: map[string][]caldav.CalendarObject{
			"/cal/a/": {
				object(t, "/cal/a/tomorrow.ics", `
SUMMARY:Tomorrow
DTSTART;VALUE=DATE:20261016`),
				object(t, "/cal/a/ended.ics", `
SUMMARY:Ended at midnight
DTSTART;TZID=Asia/Shanghai:20261014T220000
DTEND;TZID=Asia/Shanghai:20261015T000000`),
			},
		},
	}
	s := newTestSource(t, cfg, dav)

	res, err := s.FetchEvents(context.Background(), NewWindow(testNow, cfg.Location(), 0))
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestListCalendars(t *testing.T) {
	cfg := calendarConfig(t, func(c *config.CalendarConfig) { c.Enable = false })
	s := newTestSource(t, cfg, twoCalendars(t))

	names, err := s.ListCalendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Work", "Home"}, names)
}
