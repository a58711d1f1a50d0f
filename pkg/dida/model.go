package dida

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/dailyplan/pkg/model"
)

const (
	// KindNote marks a task that is only displayed, never acted upon.
	KindNote = "NOTE"

	// InboxProjectID addresses the provider's inbox, which is not part of the
	// project list.
	InboxProjectID = "inbox"

	// closedTimeLayout is the query format of the completed-task feed.
	closedTimeLayout = "2006-01-02 15:04:05"
)

// CustomTime reads the provider's timestamp format.
type CustomTime struct {
	time.Time
}

const (
	didaTimeLayout       = "2006-01-02T15:04:05.000-0700"
	didaTimeLayoutShort  = "2006-01-02T15:04:05-0700"
	didaTimeLayoutOutput = didaTimeLayoutShort
)

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		ct.Time = time.Time{}
		return nil
	}

	var err error
	for _, layout := range []string{didaTimeLayout, didaTimeLayoutShort, time.RFC3339} {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			ct.Time = t
			return nil
		}
	}
	return fmt.Errorf("failed to parse task service time string '%s': %w", s, err)
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.Format(didaTimeLayoutOutput) + `"`), nil
}

type project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

type projectData struct {
	Tasks []task `json:"tasks"`
}

type task struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Title     string      `json:"title"`
	Content   string      `json:"content,omitempty"`
	Status    int         `json:"status"`
	Priority  int         `json:"priority"`
	DueDate   *CustomTime `json:"dueDate,omitempty"`
	Completed *CustomTime `json:"completedTime,omitempty"`
	IsAllDay  bool        `json:"isAllDay,omitempty"`
	Kind      string      `json:"kind,omitempty"`
}

type noteRequest struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	ProjectID string     `json:"projectId"`
	IsAllDay  bool       `json:"isAllDay"`
	StartDate CustomTime `json:"startDate"`
	DueDate   CustomTime `json:"dueDate"`
	TimeZone  string     `json:"timeZone"`
	Kind      string     `json:"kind"`
}

func (p project) toModel() model.Project {
	return model.Project{ID: p.ID, Name: p.Name}
}

// toModel converts a wire task. known is false when the priority code is
// not one of the provider's documented values.
func (t task) toModel() (m model.Task, known bool) {
	prio, known := model.PriorityFromCode(t.Priority)
	m = model.Task{
		ID:        t.ID,
		Title:     t.Title,
		ProjectID: t.ProjectID,
		Status:    model.StatusFromCode(t.Status),
		Priority:  prio,
	}
	if t.DueDate != nil {
		m.Due = t.DueDate.Time
	}
	if t.Completed != nil {
		m.Completed = t.Completed.Time
	}
	return m, known
}
