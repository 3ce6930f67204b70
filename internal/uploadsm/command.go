// Package uploadsm implements the pure state machines that drive a single
// upload job: FileUploadSubSM sequences the per-file retry loop, and
// FilesUploadSM (FUSM) wraps it with job-level locking, remote session
// lifecycle, and job-level retry scheduling.
//
// Both state machines are pure: every transition method takes an event and
// returns a list of Commands describing side effects to perform, without
// performing any I/O itself. The caller (internal/jobexecutor) interprets
// the commands and feeds results back in as further events. This keeps the
// control flow fully testable without touching a filesystem or network.
package uploadsm

import "time"

// FileEntry is one file discovered under a job's data directory.
type FileEntry struct {
	Path string
	Size int64
}

// Lock is an opaque handle to an acquired job lock, threaded back through
// UnlockJob without the state machine inspecting its contents.
type Lock any

// Session is an opaque handle to an open remote upload session, threaded
// back through CloseSession without the state machine inspecting its
// contents.
type Session any

// Command is a closed set of side effects a state machine asks its executor
// to perform. Implementations are unexported so the set cannot grow outside
// this package; executors type-switch over the concrete types.
type Command interface {
	isCommand()
}

// LockJob requests that the executor acquire the job's exclusive lock.
type LockJob struct{}

// UnlockJob requests that the executor release a previously acquired lock.
type UnlockJob struct {
	Lock Lock
}

// OpenSession requests that the executor open a remote upload session.
type OpenSession struct{}

// CloseSession requests that the executor close a previously opened remote
// session.
type CloseSession struct {
	Session Session
}

// UploadFile requests that the executor upload one file over the given
// session.
type UploadFile struct {
	Session Session
	Path    string
}

// ReleaseFile tells the executor a file's upload outcome has been recorded
// and any resources tied to it (e.g. an open handle) may be released.
type ReleaseFile struct {
	Path string
}

// RemoveData requests that the executor delete the job's local data
// directory after a fully successful upload.
type RemoveData struct{}

// RemoveJob requests that the executor remove the job directory entirely.
type RemoveJob struct{}

// ScheduleRetry requests that the executor schedule a retry of this job
// after the given delay, resuming from State.
type ScheduleRetry struct {
	After time.Duration
	State State
}

// ReleaseSM tells the executor this state machine instance has reached a
// terminal outcome and may be discarded.
type ReleaseSM struct{}

func (LockJob) isCommand()       {}
func (UnlockJob) isCommand()     {}
func (OpenSession) isCommand()   {}
func (CloseSession) isCommand()  {}
func (UploadFile) isCommand()    {}
func (ReleaseFile) isCommand()   {}
func (RemoveData) isCommand()    {}
func (RemoveJob) isCommand()     {}
func (ScheduleRetry) isCommand() {}
func (ReleaseSM) isCommand()     {}
