package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/dailyplan/pkg/calendar"
	"github.com/harrisonrobin/dailyplan/pkg/config"
	"github.com/harrisonrobin/dailyplan/pkg/dida"
	"github.com/harrisonrobin/dailyplan/pkg/llm"
	"github.com/harrisonrobin/dailyplan/pkg/model"
	"github.com/harrisonrobin/dailyplan/pkg/report"
)

type TaskSource interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListTasks(ctx context.Context, projectID string) ([]model.Task, error)
	ListCompletedTasks(ctx context.Context, from, to time.Time) ([]model.Task, error)
	CreateNote(ctx context.Context, projectID, title, body string, day time.Time) error
}

type EventSource interface {
	Enabled() bool
	FetchEvents(ctx context.Context, w calendar.Window) (*calendar.Result, error)
}

type Generator interface {
	GeneratePlan(ctx context.Context, messages []llm.Message) (string, error)
}

// Result is what a run produced. Fields are filled as stages complete, so
// a failed run still carries everything computed before the failure.
type Result struct {
	Stage     Stage
	Events    []model.CalendarEvent
	Schedule  string
	Projects  []model.Project
	Tasks     []model.Task
	Report    string
	Messages  []llm.Message
	Plan      string
	Title     string
	Persisted bool
	Warnings  []Warning

	// Weekly runs only.
	Completed       []model.Task
	CompletedReport string
	NextEvents      []model.CalendarEvent
	NextSchedule    string

	calendarOK bool
}

// Pipeline runs one fetch, plan and write-back cycle. Create a new one per
// run.
type Pipeline struct {
	cfg    *config.Config
	tasks  TaskSource
	events EventSource
	gen    Generator
	log    zerolog.Logger
	now    func() time.Time

	// DryRun stops the run before the note is written.
	DryRun bool
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires a pipeline. events may be nil when no calendar is configured.
func New(cfg *config.Config, tasks TaskSource, events EventSource, gen Generator, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		tasks:  tasks,
		events: events,
		gen:    gen,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage in order and stops at the first fatal failure,
// which is returned as a *StageError. The clock is read once; the window,
// the schedule, the title and the note's day all derive from it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{Stage: StageIdle}
	now := p.now()
	f := p.formatter(now)
	w := calendar.NewWindow(now, p.cfg.Location(), p.cfg.Calendar.LookaheadDays)

	if p.calendarEnabled() {
		p.enter(res, StageCalendarFetch)
		res.Events, res.calendarOK = p.fetchCalendar(ctx, res, w)
	} else {
		p.log.Info().Msg("calendar disabled, planning without schedule")
	}

	p.enter(res, StageTaskFetch)
	if err := p.fetchTasks(ctx, res); err != nil {
		return res, p.fail(res, ErrUpstream, err)
	}
	if len(res.Tasks) == 0 {
		return res, p.fail(res, ErrNoTasks, nil)
	}

	p.enter(res, StageFormat)
	res.Report = f.FormatTasks(res.Tasks, res.Projects)
	if res.calendarOK {
		res.Schedule = f.FormatEvents(res.Events, w.Start, w.Days)
	}

	p.enter(res, StageSynthesize)
	res.Messages = llm.BuildMessages(res.Report, res.Schedule, p.cfg.LLM.Persona)
	if err := p.generate(ctx, res); err != nil {
		return res, err
	}
	res.Title = report.NoteTitle(now, p.cfg.Location())

	if err := p.persist(ctx, res, p.cfg.Dida.ProjectID, now); err != nil {
		return res, err
	}
	p.enter(res, StageDone)
	return res, nil
}

// FetchTasks reads the tasks of every project that is neither excluded by
// name nor a note target. It only fails when the project list itself
// cannot be read; per-project failures become warnings.
func (p *Pipeline) FetchTasks(ctx context.Context) (*Result, error) {
	res := &Result{Stage: StageIdle}
	p.enter(res, StageTaskFetch)
	if err := p.fetchTasks(ctx, res); err != nil {
		return res, p.fail(res, ErrUpstream, err)
	}
	p.enter(res, StageFormat)
	res.Report = p.formatter(p.now()).FormatTasks(res.Tasks, res.Projects)
	p.enter(res, StageDone)
	return res, nil
}

func (p *Pipeline) formatter(now time.Time) *report.Formatter {
	f := report.NewFormatter(p.cfg.Location(), p.cfg.Report.InboxName)
	f.Now = func() time.Time { return now }
	return f
}

func (p *Pipeline) calendarEnabled() bool {
	return p.events != nil && p.events.Enabled()
}

func (p *Pipeline) fetchCalendar(ctx context.Context, res *Result, w calendar.Window) ([]model.CalendarEvent, bool) {
	got, err := p.events.FetchEvents(ctx, w)
	if err != nil {
		p.warn(res, "calendar", err)
		return nil, false
	}
	for _, skipped := range got.Skipped {
		p.warn(res, "calendar", skipped)
	}
	p.log.Info().
		Int("events", len(got.Events)).
		Time("from", w.Start).
		Int("days", w.Days).
		Msg("fetched calendar events")
	return got.Events, true
}

// readable reports whether tasks of the project may feed a prompt.
func (p *Pipeline) readable(pr model.Project) bool {
	return !p.cfg.Excluded().Contains(pr.Name) && !slices.Contains(p.cfg.NoteProjects(), pr.ID)
}

func (p *Pipeline) fetchTasks(ctx context.Context, res *Result) error {
	projects, err := p.tasks.ListProjects(ctx)
	if err != nil {
		return err
	}
	res.Projects = projects

	var ids []string
	for _, pr := range projects {
		if !p.readable(pr) {
			p.log.Debug().Str("project", pr.Name).Msg("skipping project")
			continue
		}
		ids = append(ids, pr.ID)
	}
	if p.cfg.Dida.IncludeInbox {
		ids = append(ids, dida.InboxProjectID)
	}

	for _, id := range ids {
		tasks, err := p.tasks.ListTasks(ctx, id)
		if err != nil {
			p.warn(res, id, err)
			continue
		}
		res.Tasks = append(res.Tasks, tasks...)
	}

	p.log.Info().
		Int("projects", len(ids)).
		Int("tasks", len(res.Tasks)).
		Msg("fetched tasks")
	return nil
}

func (p *Pipeline) generate(ctx context.Context, res *Result) error {
	plan, err := p.gen.GeneratePlan(ctx, res.Messages)
	if err != nil {
		return p.fail(res, ErrGeneration, err)
	}
	if strings.TrimSpace(plan) == "" {
		return p.fail(res, ErrGeneration, llm.ErrNoContent)
	}
	res.Plan = plan
	return nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result, projectID string, day time.Time) error {
	if p.DryRun {
		p.log.Info().Str("title", res.Title).Msg("dry run, note not written")
		return nil
	}
	p.enter(res, StagePersist)
	if err := p.tasks.CreateNote(ctx, projectID, res.Title, res.Plan, day); err != nil {
		return p.fail(res, ErrPersist, err)
	}
	res.Persisted = true
	return nil
}

func (p *Pipeline) enter(res *Result, s Stage) {
	res.Stage = s
	p.log.Info().Str("stage", s.String()).Msg("stage")
}

func (p *Pipeline) warn(res *Result, subject string, err error) {
	res.Warnings = append(res.Warnings, Warning{Stage: res.Stage, Subject: subject, Err: err})
	ev := p.log.Warn().Str("stage", res.Stage.String()).Str("subject", subject).Err(err)
	if errors.Is(err, calendar.ErrUnavailable) {
		ev.Msg("calendar unavailable, continuing without schedule")
		return
	}
	ev.Msg("skipped after failure")
}

func (p *Pipeline) fail(res *Result, kind, err error) error {
	stageErr := &StageError{Stage: res.Stage, Kind: kind, Err: err}
	res.Stage = StageFailed
	p.log.Error().Err(stageErr).Msg("run failed")
	return stageErr
}
