package supervisor

import "github.com/JohnJocoo/gdrive-dormouse/internal/uploadsm"

// eventKind identifies one of the supervisor's accepted mailbox events.
type eventKind int

const (
	eventScanJobs eventKind = iota
	eventAddJob
	eventRetryJob
	eventScheduleRetryJob
	eventReleaseJob
	eventJobTerminated
	eventGetProgress
	eventGetJobsN
	eventSnapshot
)

// stateSnapshot is a point-in-time view of the supervisor's bookkeeping,
// used by tests to check the active/scheduled/timers invariants without
// racing the worker goroutine's map access.
type stateSnapshot struct {
	activeIDs    []string
	scheduledIDs []string
	timerCount   int
}

// Progress is the weighted cross-job aggregate reported by get_progress.
type Progress struct {
	FilesFraction float64
	SizeFraction  float64
}

// event is the sum type flowing through the supervisor's mailbox. Only the
// fields relevant to Kind are populated; reply channels are non-nil only for
// events that require a reply.
type event struct {
	kind eventKind

	jobID string

	// scheduleAfterSeconds and scheduleState carry schedule_retry_job's payload.
	scheduleAfterSeconds int
	scheduleState        uploadsm.State

	progressReply chan Progress
	jobsNReply    chan int
	snapshotReply chan stateSnapshot
}
