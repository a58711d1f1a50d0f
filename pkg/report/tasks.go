package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/dailyplan/pkg/model"
)

const (
	DefaultInboxName = "收集箱"

	untitledTask = "无标题"
	noTasks      = "没有找到任务数据"
)

var priorityLabels = map[model.Priority]string{
	model.PriorityHigh:   "(重要紧急)",
	model.PriorityMedium: "(重要不紧急)",
	model.PriorityLow:    "(不重要紧急)",
	model.PriorityNone:   "(不重要不紧急)",
}

// PriorityLabel returns the fixed label for p. Anything unknown renders as
// the label of PriorityNone.
func PriorityLabel(p model.Priority) string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return priorityLabels[model.PriorityNone]
}

// Formatter renders tasks and events as markdown. Its output only depends
// on its inputs and on Now.
type Formatter struct {
	Location *time.Location
	// InboxName is the bucket for tasks whose project id is unknown.
	InboxName string
	Now       func() time.Time
}

func NewFormatter(loc *time.Location, inboxName string) *Formatter {
	if inboxName == "" {
		inboxName = DefaultInboxName
	}
	return &Formatter{Location: loc, InboxName: inboxName, Now: time.Now}
}

type projectTasks struct {
	pending   []model.Task
	completed []model.Task
}

// FormatTasks groups tasks by project name, in lexical order, with pending
// items before completed ones.
func (f *Formatter) FormatTasks(tasks []model.Task, projects []model.Project) string {
	if len(tasks) == 0 {
		return noTasks
	}

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	groups := make(map[string]*projectTasks)
	var pending, completed int
	for _, t := range tasks {
		name, ok := names[t.ProjectID]
		if !ok {
			name = f.InboxName
		}
		g := groups[name]
		if g == nil {
			g = &projectTasks{}
			groups[name] = g
		}
		if t.Status == model.StatusPending {
			g.pending = append(g.pending, t)
			pending++
		} else {
			g.completed = append(g.completed, t)
			completed++
		}
	}

	order := make([]string, 0, len(groups))
	for name := range groups {
		order = append(order, name)
	}
	sort.Strings(order)

	var b strings.Builder
	b.WriteString("# 滴答清单任务报告\n")
	fmt.Fprintf(&b, "生成时间: %s\n", f.Now().In(f.loc()).Format(time.DateTime))
	fmt.Fprintf(&b, "总任务数: %d (未完成: %d, 已完成: %d)\n", pending+completed, pending, completed)
	b.WriteString("\n")

	for _, name := range order {
		g := groups[name]
		fmt.Fprintf(&b, "## %s\n", name)

		if len(g.pending) > 0 {
			fmt.Fprintf(&b, "### 📋 未完成 (%d个)\n", len(g.pending))
			for _, t := range g.pending {
				fmt.Fprintf(&b, "- %s %s%s\n", title(t), PriorityLabel(t.Priority), f.due(t))
			}
			b.WriteString("\n")
		}

		if len(g.completed) > 0 {
			fmt.Fprintf(&b, "### ✅ 已完成 (%d个)\n", len(g.completed))
			for _, t := range g.completed {
				fmt.Fprintf(&b, "- ✅ %s\n", title(t))
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (f *Formatter) due(t model.Task) string {
	if !t.HasDue() {
		return ""
	}
	return " 📅" + t.Due.In(f.loc()).Format(time.DateOnly)
}

func (f *Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

func title(t model.Task) string {
	if strings.TrimSpace(t.Title) == "" {
		return untitledTask
	}
	return t.Title
}

// NoteTitle renders the local date of t as "2006年1月2日".
func NoteTitle(t time.Time, loc *time.Location) string {
	y, m, d := t.In(loc).Date()
	return fmt.Sprintf("%d年%d月%d日", y, int(m), d)
}

// ShortDate renders the local date of t as 2026/1/5.
func ShortDate(t time.Time, loc *time.Location) string {
	y, m, d := t.In(loc).Date()
	return fmt.Sprintf("%d/%d/%d", y, int(m), d)
}

// Period renders an inclusive range of local dates.
func Period(from, to time.Time, loc *time.Location) string {
	return ShortDate(from, loc) + " - " + ShortDate(to, loc)
}

// WeeklyTitle is the title of the weekly report note covering from..to.
func WeeklyTitle(from, to time.Time, loc *time.Location) string {
	return "周报 " + Period(from, to, loc)
}
