package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/dailyplan/pkg/config"
	"github.com/harrisonrobin/dailyplan/pkg/model"
)

// ErrUnavailable means the calendar path cannot be used for this run. It is
// never fatal to the caller.
var ErrUnavailable = errors.New("calendar unavailable")

// davClient is the part of *caldav.Client the source needs.
type davClient interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
}

// Result holds the events that were read and the per-calendar or per-event
// failures that were skipped on the way.
type Result struct {
	Events  []model.CalendarEvent
	Skipped []error
}

// Source reads events from a CalDAV server.
type Source struct {
	cfg  config.CalendarConfig
	loc  *time.Location
	log  zerolog.Logger
	dial func(ctx context.Context) (davClient, error)
}

func NewSource(cfg *config.Config, log zerolog.Logger) *Source {
	s := &Source{
		cfg: cfg.Calendar,
		loc: cfg.Location(),
		log: log.With().Str("component", "calendar").Logger(),
	}
	s.dial = s.dialCalDAV
	return s
}

// Enabled reports whether the calendar path is switched on. A disabled
// source never touches the network.
func (s *Source) Enabled() bool {
	return s.cfg.Enable
}

// FetchEvents returns the events overlapping w, ordered timed-first then by
// start, and truncated to the configured maximum. Errors wrap
// ErrUnavailable.
func (s *Source) FetchEvents(ctx context.Context, w Window) (*Result, error) {
	if !s.cfg.Enable {
		return nil, fmt.Errorf("%w: disabled", ErrUnavailable)
	}
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	calendars, err := s.calendars(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(calendars) == 0 {
		s.log.Warn().Msg("no calendars found")
		return &Result{}, nil
	}

	res := &Result{}
	for _, cal := range s.selectCalendars(calendars) {
		objects, err := client.QueryCalendar(ctx, cal.Path, eventQuery(w))
		if err != nil {
			s.log.Warn().Err(err).Str("calendar", displayName(cal)).Msg("calendar query failed, skipping")
			res.Skipped = append(res.Skipped, fmt.Errorf("query %s: %w", displayName(cal), err))
			continue
		}
		for _, obj := range objects {
			events, errs := s.parseObject(obj, displayName(cal), w)
			res.Events = append(res.Events, events...)
			for _, err := range errs {
				s.log.Warn().Err(err).Str("object", obj.Path).Msg("event parse failed, skipping")
				res.Skipped = append(res.Skipped, fmt.Errorf("parse %s: %w", obj.Path, err))
			}
		}
	}

	model.SortEvents(res.Events)
	if len(res.Events) > s.cfg.MaxEvents {
		res.Events = res.Events[:s.cfg.MaxEvents]
	}
	s.log.Debug().Int("count", len(res.Events)).Int("skipped", len(res.Skipped)).Msg("fetched events")
	return res, nil
}

// ListCalendars returns the display names of every calendar on the server.
// It works even when the calendar path is not enabled for plan runs.
func (s *Source) ListCalendars(ctx context.Context) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	calendars, err := s.calendars(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	names := make([]string, 0, len(calendars))
	for _, c := range calendars {
		names = append(names, displayName(c))
	}
	return names, nil
}

func (s *Source) connect(ctx context.Context) (davClient, error) {
	if s.cfg.Provider != config.ProviderICloud {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrUnavailable, s.cfg.Provider)
	}
	if !s.cfg.HasCredentials() {
		return nil, fmt.Errorf("%w: missing ICLOUD_USERNAME/ICLOUD_APP_PASSWORD", ErrUnavailable)
	}
	client, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return client, nil
}

func (s *Source) dialCalDAV(_ context.Context) (davClient, error) {
	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: s.cfg.Timeout}, s.cfg.Username, s.cfg.Password)
	client, err := caldav.NewClient(httpClient, s.cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create CalDAV client: %w", err)
	}
	return client, nil
}

func (s *Source) calendars(ctx context.Context, client davClient) ([]caldav.Calendar, error) {
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("unable to find calendar home set: %w", err)
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	// Reminder lists share the home set but carry no events.
	withEvents := calendars[:0]
	for _, c := range calendars {
		if len(c.SupportedComponentSet) == 0 || slices.Contains(c.SupportedComponentSet, ical.CompEvent) {
			withEvents = append(withEvents, c)
		}
	}
	return withEvents, nil
}

// selectCalendars applies the name filter. When nothing matches, every
// calendar is used.
func (s *Source) selectCalendars(calendars []caldav.Calendar) []caldav.Calendar {
	if len(s.cfg.Names) == 0 {
		return calendars
	}
	var selected []caldav.Calendar
	for _, c := range calendars {
		if slices.Contains(s.cfg.Names, c.Name) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		s.log.Warn().Strs("names", s.cfg.Names).Msg("no calendar matched CALENDAR_NAME, reading all calendars")
		return calendars
	}
	return selected
}

func eventQuery(w Window) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: w.Start.UTC(),
				End:   w.End.UTC(),
			}},
		},
	}
}

func displayName(c caldav.Calendar) string {
	if c.Name == "" {
		return "(未命名)"
	}
	return c.Name
}
