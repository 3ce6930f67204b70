package jobexecutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
	"github.com/JohnJocoo/gdrive-dormouse/internal/uploadsm"
)

// HistoryRecorder persists the terminal outcome of a job. Defined narrowly
// here (rather than importing the jobhistory package's record type
// directly) so the executor doesn't need to know about storage.
type HistoryRecorder interface {
	RecordJobOutcome(ctx context.Context, jobID, outcome string) error
}

const (
	outcomeSucceeded          = "succeeded"
	outcomeFailedFinal        = "failed_final"
	outcomeAbandonedLockTaken = "abandoned_lock_taken"
	dataSubdir                = "data"
	lockFileName              = ".lock"
)

// Config bundles the per-job-independent settings a JobExecutor needs.
type Config struct {
	Destination     string
	ExceptionNames  map[string]struct{}
	PhotoExtensions map[string]struct{}
}

// JobExecutor drives one FilesUploadSM instance for one job directory on a
// dedicated goroutine, recovering from a panic on that goroutine rather than
// crashing the process.
type JobExecutor struct {
	jobID       string
	jobDir      string
	dataDir     string
	lockPath    string
	destination string

	exceptionNames  map[string]struct{}
	photoExtensions map[string]struct{}

	capability RemoteDriveCapability
	history    HistoryRecorder
	cache      *DirectoryCache
	feedback   FeedbackFunc
	logger     *slog.Logger

	sm             *uploadsm.FilesUploadSM
	lock           *jobLock
	abandoned      bool
	scheduledRetry bool
}

// New creates a JobExecutor for jobID rooted at jobsRoot/jobID.
func New(
	jobID, jobsRoot string,
	cfg Config,
	capability RemoteDriveCapability,
	history HistoryRecorder,
	feedback FeedbackFunc,
	retryDelay time.Duration,
	logger *slog.Logger,
) *JobExecutor {
	jobDir := filepath.Join(jobsRoot, jobID)

	return &JobExecutor{
		jobID:           jobID,
		jobDir:          jobDir,
		dataDir:         filepath.Join(jobDir, dataSubdir),
		lockPath:        filepath.Join(jobDir, lockFileName),
		destination:     cfg.Destination,
		exceptionNames:  cfg.ExceptionNames,
		photoExtensions: cfg.PhotoExtensions,
		capability:      capability,
		history:         history,
		cache:           NewDirectoryCache(),
		feedback:        feedback,
		logger:          logger.With(slog.String("job_id", jobID)),
		sm:              uploadsm.NewFilesUploadSM(retryDelay),
	}
}

// RunFresh lists the job's data/ tree and drives a new upload from scratch.
func (e *JobExecutor) RunFresh(ctx context.Context) {
	e.runSafely(ctx, nil)
}

// RunRetry resumes a previously scheduled job from state.
func (e *JobExecutor) RunRetry(ctx context.Context, state uploadsm.State) {
	e.runSafely(ctx, &state)
}

// runSafely wraps run with panic recovery: a panic on this goroutine is
// reported as FeedbackTerminated rather than crashing the process.
func (e *JobExecutor) runSafely(ctx context.Context, resumeState *uploadsm.State) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job executor panicked", slog.Any("panic", r))
			e.feedback(Feedback{JobID: e.jobID, Kind: FeedbackTerminated})
		}
	}()

	e.run(ctx, resumeState)
}

func (e *JobExecutor) run(ctx context.Context, resumeState *uploadsm.State) {
	var cmds []uploadsm.Command

	if resumeState != nil {
		e.logger.Info("resuming job from retry state")
		cmds = e.sm.Retry(*resumeState)
	} else {
		files, err := listFiles(e.dataDir, e.exceptionNames)
		if err != nil {
			e.logger.Error("listing job files failed", slog.String("error", err.Error()))
			e.feedback(Feedback{JobID: e.jobID, Kind: FeedbackTerminated})

			return
		}

		e.logger.Info("starting job", slog.Int("files", len(files)))
		cmds = e.sm.Start(files)
	}

	e.drain(ctx, cmds)
}

// drain processes the command queue to exhaustion, feeding each handler's
// result back into the queue, the way the FUSM's pure transitions expect.
func (e *JobExecutor) drain(ctx context.Context, cmds []uploadsm.Command) {
	for len(cmds) > 0 {
		cmd := cmds[0]
		cmds = cmds[1:]

		next, err := e.handle(ctx, cmd)
		if err != nil {
			e.logger.Error("command handling failed", slog.String("error", err.Error()))

			continue
		}

		cmds = append(cmds, next...)
	}
}

func (e *JobExecutor) handle(ctx context.Context, cmd uploadsm.Command) ([]uploadsm.Command, error) {
	switch c := cmd.(type) {
	case uploadsm.LockJob:
		return e.handleLockJob()
	case uploadsm.UnlockJob:
		return e.handleUnlockJob()
	case uploadsm.OpenSession:
		return e.handleOpenSession(ctx)
	case uploadsm.CloseSession:
		return e.sm.SessionClosed(), nil
	case uploadsm.UploadFile:
		return e.handleUploadFile(ctx, c)
	case uploadsm.ReleaseFile:
		e.handleReleaseFile(c)

		return nil, nil
	case uploadsm.RemoveData:
		return e.handleRemoveData()
	case uploadsm.RemoveJob:
		return e.handleRemoveJob()
	case uploadsm.ScheduleRetry:
		e.handleScheduleRetry(c)

		return e.sm.ScheduledRetry(), nil
	case uploadsm.ReleaseSM:
		e.handleReleaseSM(ctx)

		return nil, nil
	default:
		return nil, fmt.Errorf("jobexecutor: unknown command %T", cmd)
	}
}

func (e *JobExecutor) handleLockJob() ([]uploadsm.Command, error) {
	lock, err := acquireLock(e.lockPath)
	if err != nil {
		if errors.Is(err, lockErrTaken) {
			e.logger.Info("job lock already held, abandoning")
			e.abandoned = true

			return e.sm.DataLockFailedTaken(), nil
		}

		e.logger.Warn("job lock failed, will retry", slog.String("error", err.Error()))

		return e.sm.DataLockFailedOther(), nil
	}

	e.lock = lock

	return e.sm.DataLocked(lock), nil
}

func (e *JobExecutor) handleUnlockJob() ([]uploadsm.Command, error) {
	if err := e.lock.release(); err != nil {
		e.logger.Warn("releasing job lock failed", slog.String("error", err.Error()))
	}

	e.lock = nil

	return e.sm.DataUnlocked(), nil
}

func (e *JobExecutor) handleOpenSession(ctx context.Context) ([]uploadsm.Command, error) {
	if e.capability.IsTokenExpired() {
		if err := e.capability.Refresh(ctx); err != nil {
			e.logger.Warn("token refresh failed", slog.String("error", err.Error()))

			return e.sm.SessionOpenFailed(), nil
		}
	}

	return e.sm.SessionOpened(e.capability), nil
}

func (e *JobExecutor) handleUploadFile(ctx context.Context, c uploadsm.UploadFile) ([]uploadsm.Command, error) {
	relDir := filepath.Dir(strings.TrimPrefix(c.Path, e.dataDir+string(filepath.Separator)))
	if relDir == "." {
		relDir = ""
	}

	parentID, err := resolveParent(ctx, e.capability, e.cache, e.destination, relDir)
	if err == nil {
		if parentID == drive.RootID {
			// A file placed directly at the drive root carries no parents.
			parentID = ""
		}

		name := filepath.Base(c.Path)
		err = e.capability.CreateAndUploadFile(ctx, newDriveFile(name, parentID, c.Path, e.photoExtensions))
	}

	if err != nil {
		e.logger.Warn("upload failed, will retry file",
			slog.String("path", c.Path), slog.String("error", err.Error()))
		e.cache.Clear()

		cmds, smErr := e.sm.FileUploadFailed(c.Path)

		return cmds, smErr
	}

	cmds, smErr := e.sm.FileUploaded(c.Path)

	return cmds, smErr
}

func newDriveFile(name, parentID, contentPath string, photoExtensions map[string]struct{}) drive.NewFile {
	return drive.NewFile{
		Title:       name,
		Spaces:      classifySpaces(name, photoExtensions),
		ParentID:    parentID,
		ContentPath: contentPath,
	}
}

func (e *JobExecutor) handleReleaseFile(c uploadsm.ReleaseFile) {
	if err := os.Remove(c.Path); err != nil {
		e.logger.Warn("removing uploaded file failed", slog.String("path", c.Path), slog.String("error", err.Error()))
	}
}

func (e *JobExecutor) handleRemoveData() ([]uploadsm.Command, error) {
	if err := os.RemoveAll(e.dataDir); err != nil {
		e.logger.Warn("removing data directory failed", slog.String("error", err.Error()))
	}

	return e.sm.DataRemoved(), nil
}

func (e *JobExecutor) handleRemoveJob() ([]uploadsm.Command, error) {
	if err := os.RemoveAll(e.jobDir); err != nil {
		e.logger.Warn("removing job directory failed", slog.String("error", err.Error()))
	}

	return e.sm.JobRemoved(), nil
}

func (e *JobExecutor) handleScheduleRetry(c uploadsm.ScheduleRetry) {
	e.scheduledRetry = true

	e.feedback(Feedback{
		JobID: e.jobID,
		Kind:  FeedbackScheduleRetry,
		Schedule: SchedulePayload{
			After: c.After,
			State: c.State,
		},
	})
}

func (e *JobExecutor) handleReleaseSM(ctx context.Context) {
	outcome := outcomeSucceeded

	switch {
	case e.abandoned:
		outcome = outcomeAbandonedLockTaken
	case e.scheduledRetry:
		outcome = outcomeFailedFinal
	}

	if e.history != nil {
		if err := e.history.RecordJobOutcome(ctx, e.jobID, outcome); err != nil {
			e.logger.Warn("recording job history failed", slog.String("error", err.Error()))
		}
	}

	e.feedback(Feedback{JobID: e.jobID, Kind: FeedbackRelease})
}

// Progress reports (files fraction, size fraction) for this job, for the
// supervisor's cross-job aggregation.
func (e *JobExecutor) Progress() (filesFraction, sizeFraction float64) {
	return e.sm.Progress()
}

// Totals reports (total files, total size) for this job, for the
// supervisor's weighted cross-job aggregation.
func (e *JobExecutor) Totals() (totalFiles int, totalSize int64) {
	return e.sm.Totals()
}
