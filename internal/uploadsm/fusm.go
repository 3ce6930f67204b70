package uploadsm

import "time"

// fusmState is the FilesUploadSM's state.
type fusmState int

const (
	fusmIdle fusmState = iota
	fusmLocking
	fusmOpeningSession
	fusmUploading
	fusmClosingSession
	fusmRemovingData
	fusmUnlocking
	fusmRemovingJob
	fusmDone
	fusmClosingSessionRetry
	fusmUnlockingRetry
	fusmSchedulingRetry
)

func (s fusmState) String() string {
	switch s {
	case fusmIdle:
		return "idle"
	case fusmLocking:
		return "locking"
	case fusmOpeningSession:
		return "opening_session"
	case fusmUploading:
		return "uploading"
	case fusmClosingSession:
		return "closing_session"
	case fusmRemovingData:
		return "removing_data"
	case fusmUnlocking:
		return "unlocking"
	case fusmRemovingJob:
		return "removing_job"
	case fusmDone:
		return "done"
	case fusmClosingSessionRetry:
		return "closing_sess_retry"
	case fusmUnlockingRetry:
		return "unlocking_retry"
	case fusmSchedulingRetry:
		return "scheduling_retry"
	default:
		return "unknown"
	}
}

// FilesUploadSM (FUSM) drives a single job end to end: acquiring its lock,
// opening a remote session, running the per-file sub state machine,
// tracking progress, and on any failure scheduling a retry of the whole job
// after RetryDelay. It is pure: every transition method returns the
// Commands the caller (a JobExecutor) must perform, and the result of each
// is fed back in via the corresponding method.
type FilesUploadSM struct {
	state fusmState
	sub   *FileUploadSubSM

	filesRemaining map[string]FileEntry
	filesOriginal  map[string]FileEntry
	totalSize      int64
	uploadedSize   int64

	lock    Lock
	session Session

	retryDelay time.Duration
}

// NewFilesUploadSM returns a FilesUploadSM in its initial idle state. Any
// job that fails will be rescheduled after retryDelay.
func NewFilesUploadSM(retryDelay time.Duration) *FilesUploadSM {
	return &FilesUploadSM{
		state:      fusmIdle,
		sub:        NewFileUploadSubSM(),
		retryDelay: retryDelay,
	}
}

// State returns the job and sub-job state names, for logging only.
func (sm *FilesUploadSM) State() (string, string) {
	return sm.state.String(), sm.sub.State()
}

// Progress reports (files done / files total, bytes uploaded / bytes total),
// each in [0, 1]. Both are 0 before Start is ever called.
func (sm *FilesUploadSM) Progress() (filesFraction, sizeFraction float64) {
	totalFiles := len(sm.filesOriginal)
	if totalFiles == 0 || sm.totalSize == 0 {
		return 0, 0
	}

	doneFiles := totalFiles - len(sm.filesRemaining)

	return float64(doneFiles) / float64(totalFiles), float64(sm.uploadedSize) / float64(sm.totalSize)
}

// Totals reports the file count and byte size this run started with, for
// callers that weight cross-job progress aggregation (e.g. a supervisor
// combining several jobs' Progress fractions). Both are 0 before Start is
// ever called.
func (sm *FilesUploadSM) Totals() (totalFiles int, totalSize int64) {
	return len(sm.filesOriginal), sm.totalSize
}

// Start begins a fresh upload of files: idle -> locking.
func (sm *FilesUploadSM) Start(files []FileEntry) []Command {
	sm.seedFiles(files)
	sm.state = fusmLocking

	return []Command{LockJob{}}
}

// Retry resumes a previously scheduled job from a durable State: idle ->
// locking. The lock and session are always re-acquired from scratch.
func (sm *FilesUploadSM) Retry(state State) []Command {
	sm.restoreState(state)
	sm.state = fusmLocking

	return []Command{LockJob{}}
}

// DataLocked reports the lock was acquired: locking -> opening_session.
func (sm *FilesUploadSM) DataLocked(lock Lock) []Command {
	sm.lock = lock
	sm.state = fusmOpeningSession

	return []Command{OpenSession{}}
}

// DataLockFailedTaken reports the lock is held by another process: the job
// is abandoned outright (locking -> done), since whoever holds the lock is
// responsible for the job's data.
func (sm *FilesUploadSM) DataLockFailedTaken() []Command {
	sm.state = fusmDone

	return []Command{ReleaseSM{}}
}

// DataLockFailedOther reports a transient locking error: the job is
// rescheduled (locking -> scheduling_retry).
func (sm *FilesUploadSM) DataLockFailedOther() []Command {
	state := sm.snapshotState()
	sm.state = fusmSchedulingRetry

	return []Command{ScheduleRetry{After: sm.retryDelay, State: state}}
}

// SessionOpened reports the remote session opened successfully and starts
// uploading files: opening_session -> uploading.
func (sm *FilesUploadSM) SessionOpened(session Session) []Command {
	sm.session = session
	sm.state = fusmUploading

	files := make([]FileEntry, 0, len(sm.filesRemaining))
	for _, f := range sm.filesRemaining {
		files = append(files, f)
	}

	return sm.handleSubEffects(sm.sub.Start(files))
}

// SessionOpenFailed reports the session failed to open: opening_session ->
// unlocking_retry.
func (sm *FilesUploadSM) SessionOpenFailed() []Command {
	lock := sm.lock
	sm.lock = nil
	sm.state = fusmUnlockingRetry

	return []Command{UnlockJob{Lock: lock}}
}

// FileUploaded reports filePath finished uploading. filePath must be the
// file most recently requested via an UploadFile command, or ErrInvalidFile
// is returned.
func (sm *FilesUploadSM) FileUploaded(filePath string) ([]Command, error) {
	effects, err := sm.sub.UploadSucceeded(filePath)
	if err != nil {
		return nil, err
	}

	return sm.handleSubEffects(effects), nil
}

// FileUploadFailed reports filePath's upload attempt failed. filePath must
// be the file most recently requested via an UploadFile command, or
// ErrInvalidFile is returned.
func (sm *FilesUploadSM) FileUploadFailed(filePath string) ([]Command, error) {
	effects, err := sm.sub.UploadFailed(filePath)
	if err != nil {
		return nil, err
	}

	return sm.handleSubEffects(effects), nil
}

// SessionClosed reports the remote session closed. The next state depends
// on whether the job succeeded or is being abandoned for retry.
func (sm *FilesUploadSM) SessionClosed() []Command {
	if sm.state == fusmClosingSessionRetry {
		lock := sm.lock
		sm.lock = nil
		sm.state = fusmUnlockingRetry

		return []Command{UnlockJob{Lock: lock}}
	}

	sm.state = fusmRemovingData

	return []Command{RemoveData{}}
}

// DataRemoved reports the job's local data directory was deleted:
// removing_data -> unlocking.
func (sm *FilesUploadSM) DataRemoved() []Command {
	lock := sm.lock
	sm.lock = nil
	sm.state = fusmUnlocking

	return []Command{UnlockJob{Lock: lock}}
}

// DataUnlocked reports the lock was released. The next state depends on
// whether the job succeeded or is being rescheduled for retry.
func (sm *FilesUploadSM) DataUnlocked() []Command {
	if sm.state == fusmUnlockingRetry {
		state := sm.snapshotState()
		sm.state = fusmSchedulingRetry

		return []Command{ScheduleRetry{After: sm.retryDelay, State: state}}
	}

	sm.state = fusmRemovingJob

	return []Command{RemoveJob{}}
}

// JobRemoved reports the job directory was deleted: removing_job -> done.
func (sm *FilesUploadSM) JobRemoved() []Command {
	sm.state = fusmDone

	return []Command{ReleaseSM{}}
}

// ScheduledRetry reports the retry feedback was handed off successfully:
// scheduling_retry -> done. This releases the FUSM instance for this attempt
// even though the job itself will resume later from the persisted state.
func (sm *FilesUploadSM) ScheduledRetry() []Command {
	sm.state = fusmDone

	return []Command{ReleaseSM{}}
}

func (sm *FilesUploadSM) seedFiles(files []FileEntry) {
	sm.filesOriginal = make(map[string]FileEntry, len(files))

	var total int64
	for _, f := range files {
		sm.filesOriginal[f.Path] = f
		total += f.Size
	}

	sm.filesRemaining = make(map[string]FileEntry, len(sm.filesOriginal))
	for k, v := range sm.filesOriginal {
		sm.filesRemaining[k] = v
	}

	sm.totalSize = total
	sm.uploadedSize = 0
}

func (sm *FilesUploadSM) restoreState(state State) {
	sm.filesOriginal = make(map[string]FileEntry, len(state.Original))

	var total int64
	for _, f := range state.Original {
		sm.filesOriginal[f.Path] = f
		total += f.Size
	}

	sm.filesRemaining = make(map[string]FileEntry, len(state.Remaining))

	var remaining int64
	for _, f := range state.Remaining {
		sm.filesRemaining[f.Path] = f
		remaining += f.Size
	}

	sm.totalSize = total
	sm.uploadedSize = total - remaining
}

func (sm *FilesUploadSM) snapshotState() State {
	original := make([]FileEntry, 0, len(sm.filesOriginal))
	for _, f := range sm.filesOriginal {
		original = append(original, f)
	}

	remaining := make([]FileEntry, 0, len(sm.filesRemaining))
	for _, f := range sm.filesRemaining {
		remaining = append(remaining, f)
	}

	return State{Remaining: remaining, Original: original}
}

// handleSubEffects translates FileUploadSubSM commands into FUSM-level
// commands, tracking per-file progress and session handles along the way.
func (sm *FilesUploadSM) handleSubEffects(effects []Command) []Command {
	var out []Command

	for _, effect := range effects {
		switch e := effect.(type) {
		case UploadFile:
			out = append(out, UploadFile{Session: sm.session, Path: e.Path})
		case ReleaseFile:
			if f, ok := sm.filesRemaining[e.Path]; ok {
				sm.uploadedSize += f.Size
				delete(sm.filesRemaining, e.Path)
			}

			out = append(out, ReleaseFile{Path: e.Path})
		case subEmpty:
			sm.state = fusmClosingSession
			session := sm.session
			sm.session = nil
			out = append(out, CloseSession{Session: session})
		case subFinalError:
			sm.state = fusmClosingSessionRetry
			session := sm.session
			sm.session = nil
			out = append(out, CloseSession{Session: session})
		default:
			out = append(out, effect)
		}
	}

	return out
}
