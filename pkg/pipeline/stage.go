package pipeline

// Stage is a step of a run. A run moves through the stages in declaration
// order and ends in StageDone or StageFailed.
type Stage int

const (
	StageIdle Stage = iota
	StageCalendarFetch
	StageTaskFetch
	StageFormat
	StageSynthesize
	StagePersist
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:          "idle",
	StageCalendarFetch: "calendar-fetch",
	StageTaskFetch:     "task-fetch",
	StageFormat:        "format",
	StageSynthesize:    "synthesize",
	StagePersist:       "persist",
	StageDone:          "done",
	StageFailed:        "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
