package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrUpstream   = errors.New("task service unavailable")
	ErrNoTasks    = errors.New("no tasks to plan")
	ErrGeneration = errors.New("plan generation failed")
	ErrPersist    = errors.New("note write-back failed")
)

// StageError is the fatal failure that ended a run. Kind is one of the
// sentinel errors above.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Warning is a failure the run continued past.
type Warning struct {
	Stage   Stage
	Subject string
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %v", w.Stage, w.Subject, w.Err)
}
