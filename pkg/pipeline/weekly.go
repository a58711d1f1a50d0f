package pipeline

import (
	"context"
	"time"

	"github.com/harrisonrobin/dailyplan/pkg/calendar"
	"github.com/harrisonrobin/dailyplan/pkg/llm"
	"github.com/harrisonrobin/dailyplan/pkg/model"
	"github.com/harrisonrobin/dailyplan/pkg/report"
)

// weekDays is the length of the reported week, today included.
const weekDays = 7

// RunWeekly reports on the last seven local days, today included, and
// previews the seven days after. It goes through the same stages as Run
// and writes one note into the weekly report project.
func (p *Pipeline) RunWeekly(ctx context.Context) (*Result, error) {
	res := &Result{Stage: StageIdle}
	now := p.now()
	loc := p.cfg.Location()
	local := now.In(loc)
	f := p.formatter(now)

	past := calendar.DaysFrom(local.AddDate(0, 0, 1-weekDays), loc, weekDays)
	next := calendar.DaysFrom(local.AddDate(0, 0, 1), loc, weekDays)

	var pastOK, nextOK bool
	if p.calendarEnabled() {
		p.enter(res, StageCalendarFetch)
		res.Events, pastOK = p.fetchCalendar(ctx, res, past)
		res.NextEvents, nextOK = p.fetchCalendar(ctx, res, next)
	} else {
		p.log.Info().Msg("calendar disabled, reporting without schedule")
	}

	p.enter(res, StageTaskFetch)
	if err := p.fetchTasks(ctx, res); err != nil {
		return res, p.fail(res, ErrUpstream, err)
	}
	p.fetchCompleted(ctx, res, past.Start, now)
	if len(res.Tasks) == 0 && len(res.Completed) == 0 {
		return res, p.fail(res, ErrNoTasks, nil)
	}

	p.enter(res, StageFormat)
	res.Report = f.FormatTasks(res.Tasks, res.Projects)
	res.CompletedReport = f.FormatTasks(res.Completed, res.Projects)
	if pastOK {
		res.Schedule = f.FormatDays(res.Events, past.Start, past.Days)
	}
	if nextOK {
		res.NextSchedule = f.FormatDays(res.NextEvents, next.Start, next.Days)
	}

	p.enter(res, StageSynthesize)
	res.Messages = llm.BuildWeeklyMessages(llm.WeeklyInput{
		Today:        report.ShortDate(now, loc),
		Period:       report.Period(past.Start, now, loc),
		Completed:    res.CompletedReport,
		Open:         res.Report,
		PastSchedule: res.Schedule,
		NextSchedule: res.NextSchedule,
	}, p.cfg.LLM.Persona)
	if err := p.generate(ctx, res); err != nil {
		return res, err
	}
	res.Title = report.WeeklyTitle(past.Start, now, loc)

	if err := p.persist(ctx, res, p.cfg.Dida.WeeklyProjectID, now); err != nil {
		return res, err
	}
	p.enter(res, StageDone)
	return res, nil
}

// fetchCompleted reads the tasks completed since from. The feed is outside
// the open API, so a failure only costs the report its completed section.
func (p *Pipeline) fetchCompleted(ctx context.Context, res *Result, from, to time.Time) {
	tasks, err := p.tasks.ListCompletedTasks(ctx, from, to)
	if err != nil {
		p.warn(res, "completed tasks", err)
		return
	}

	byID := make(map[string]model.Project, len(res.Projects))
	for _, pr := range res.Projects {
		byID[pr.ID] = pr
	}
	for _, t := range tasks {
		pr, ok := byID[t.ProjectID]
		if !ok {
			pr = model.Project{ID: t.ProjectID}
		}
		if !p.readable(pr) {
			continue
		}
		res.Completed = append(res.Completed, t)
	}
	p.log.Info().Int("completed", len(res.Completed)).Msg("fetched completed tasks")
}
