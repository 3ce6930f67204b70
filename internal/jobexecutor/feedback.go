package jobexecutor

import (
	"time"

	"github.com/JohnJocoo/gdrive-dormouse/internal/uploadsm"
)

// FeedbackKind identifies which of the three feedback commands an executor
// reported to its supervisor.
type FeedbackKind int

const (
	// FeedbackScheduleRetry asks the supervisor to retry the whole job after
	// Schedule.After, resuming from Schedule.State.
	FeedbackScheduleRetry FeedbackKind = iota
	// FeedbackRelease reports the executor released its state machine (after
	// success, lock-taken abandonment, or once a retry has been scheduled);
	// the supervisor drops it from the active set.
	FeedbackRelease
	// FeedbackTerminated reports the executor goroutine panicked or could not
	// list the job's files; the supervisor reschedules the whole job from
	// scratch.
	FeedbackTerminated
)

// SchedulePayload is carried by a FeedbackScheduleRetry feedback.
type SchedulePayload struct {
	After time.Duration
	State uploadsm.State
}

// Feedback is what an executor reports back to its supervisor.
type Feedback struct {
	JobID    string
	Kind     FeedbackKind
	Schedule SchedulePayload
}

// FeedbackFunc delivers a Feedback to whatever owns this executor.
type FeedbackFunc func(Feedback)
