package model

import "time"

// Project is a task list on the provider side.
type Project struct {
	ID   string
	Name string
}

type Status int

const (
	StatusPending Status = iota
	StatusCompleted
)

// StatusFromCode maps a provider status code. 0 is pending, anything else
// counts as completed.
func StatusFromCode(code int) Status {
	if code == 0 {
		return StatusPending
	}
	return StatusCompleted
}

func (s Status) String() string {
	if s == StatusPending {
		return "pending"
	}
	return "completed"
}

type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

var priorityCodes = map[int]Priority{
	0: PriorityNone,
	1: PriorityLow,
	3: PriorityMedium,
	5: PriorityHigh,
}

// PriorityFromCode maps a provider priority code. The second return value is
// false when the code is unknown, in which case the priority is PriorityNone.
func PriorityFromCode(code int) (Priority, bool) {
	p, ok := priorityCodes[code]
	if !ok {
		return PriorityNone, false
	}
	return p, true
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "none"
	}
}

// Task is a normalized provider task.
type Task struct {
	ID        string
	Title     string
	ProjectID string
	Status    Status
	Priority  Priority
	// Due is the zero time when the task has no due date.
	Due time.Time
	// Completed is only set for tasks read from the completed-task feed.
	Completed time.Time
}

func (t Task) HasDue() bool {
	return !t.Due.IsZero()
}
