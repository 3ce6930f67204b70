// Package supervisor implements UploadsSupervisor, the single dedicated
// worker goroutine that owns the active-jobs map, the scheduled (paused)
// jobs map, and the per-job retry timers, driving job pickup, retry
// scheduling, and graceful shutdown entirely through mailbox messages, with
// one goroutine per job plus a single coordinating goroutine.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/JohnJocoo/gdrive-dormouse/internal/jobexecutor"
	"github.com/JohnJocoo/gdrive-dormouse/internal/uploadsm"
)

// JobRunner is the subset of *jobexecutor.JobExecutor the supervisor needs.
// Defined here so tests can inject fakes without touching the filesystem or
// a real RemoteDriveCapability.
type JobRunner interface {
	RunFresh(ctx context.Context)
	RunRetry(ctx context.Context, state uploadsm.State)
	Progress() (filesFraction, sizeFraction float64)
	Totals() (totalFiles int, totalSize int64)
}

var _ JobRunner = (*jobexecutor.JobExecutor)(nil)

// ExecutorFactory builds the JobRunner for jobID, wiring feedback so the
// executor's terminal/retry commands reach this supervisor's mailbox.
type ExecutorFactory func(jobID string, feedback jobexecutor.FeedbackFunc) JobRunner

// Config holds the supervisor's timing knobs, sourced from config.RetryConfig.
type Config struct {
	JobsRoot        string
	ScanInterval    time.Duration
	CrashRetryDelay time.Duration
	ReplyTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type scheduledJob struct {
	state uploadsm.State
	fresh bool
}

type jobHandle struct {
	runner JobRunner
	cancel context.CancelFunc
	done   chan struct{}
}

// UploadsSupervisor coordinates job pickup, retry scheduling, and shutdown
// for every job directory under cfg.JobsRoot. All mutable state is confined
// to the run loop's goroutine; callers only ever send mailbox events.
type UploadsSupervisor struct {
	cfg     Config
	factory ExecutorFactory
	logger  *slog.Logger

	mailbox   chan event
	scheduler *retryScheduler

	active    map[string]*jobHandle
	scheduled map[string]scheduledJob

	wg sync.WaitGroup
}

// New builds an UploadsSupervisor. Call Run to start its worker goroutine.
func New(cfg Config, factory ExecutorFactory, logger *slog.Logger) *UploadsSupervisor {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 5 * time.Second
	}

	return &UploadsSupervisor{
		cfg:       cfg,
		factory:   factory,
		logger:    logger,
		mailbox:   make(chan event, 256),
		scheduler: newRetryScheduler(),
		active:    make(map[string]*jobHandle),
		scheduled: make(map[string]scheduledJob),
	}
}

// Run starts the supervisor's worker goroutine and blocks until ctx is
// canceled, at which point it performs the stop_all sequence and returns.
// A periodic ticker (cfg.ScanInterval) and an fsnotify watch on cfg.JobsRoot
// both trigger scan_jobs; directory listing is the source of truth, so
// individual fsnotify events are not interpreted beyond "something changed".
func (s *UploadsSupervisor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("supervisor: creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.JobsRoot); err != nil {
		s.logger.Warn("watching jobs root failed, falling back to polling only",
			slog.String("jobs_root", s.cfg.JobsRoot), slog.String("error", err.Error()))
	}

	scanInterval := s.cfg.ScanInterval
	if scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	s.handleScanJobs()

	for {
		select {
		case <-ctx.Done():
			return s.stopAll()

		case <-ticker.C:
			s.post(event{kind: eventScanJobs})

		case fsEvent, ok := <-watcher.Events:
			if !ok {
				continue
			}

			if fsEvent.Has(fsnotify.Create) {
				s.post(event{kind: eventScanJobs})
			}

		case watchErr, ok := <-watcher.Errors:
			if ok {
				s.logger.Warn("fsnotify watch error", slog.String("error", watchErr.Error()))
			}

		case ev := <-s.mailbox:
			s.handle(ctx, ev)
		}
	}
}

// post enqueues an event without blocking the caller on a reply.
func (s *UploadsSupervisor) post(ev event) {
	select {
	case s.mailbox <- ev:
	default:
		s.logger.Warn("supervisor mailbox full, dropping event", slog.Int("kind", int(ev.kind)))
	}
}

func (s *UploadsSupervisor) handle(ctx context.Context, ev event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("supervisor event handler panicked",
				slog.Int("kind", int(ev.kind)), slog.Any("panic", r))
		}
	}()

	switch ev.kind {
	case eventScanJobs:
		s.handleScanJobs()
	case eventAddJob:
		s.handleAddJob(ctx, ev.jobID)
	case eventRetryJob:
		s.handleRetryJob(ctx, ev.jobID)
	case eventScheduleRetryJob:
		s.handleScheduleRetryJob(ev.jobID, ev.scheduleAfterSeconds, ev.scheduleState)
	case eventReleaseJob:
		s.handleReleaseJob(ev.jobID)
	case eventJobTerminated:
		s.handleJobTerminated(ev.jobID)
	case eventGetProgress:
		ev.progressReply <- s.computeProgress()
	case eventGetJobsN:
		ev.jobsNReply <- len(s.active)
	case eventSnapshot:
		ev.snapshotReply <- s.snapshot()
	default:
		s.logger.Error("supervisor: unknown event kind", slog.Int("kind", int(ev.kind)))
	}
}

// handleScanJobs lists jobs_root's direct subdirectories and starts any job
// whose id is neither active nor scheduled.
func (s *UploadsSupervisor) handleScanJobs() {
	entries, err := os.ReadDir(s.cfg.JobsRoot)
	if err != nil {
		s.logger.Warn("scanning jobs root failed", slog.String("error", err.Error()))

		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, active := s.active[id]; active {
			continue
		}

		if _, scheduled := s.scheduled[id]; scheduled {
			continue
		}

		s.post(event{kind: eventAddJob, jobID: id})
	}
}

func (s *UploadsSupervisor) handleAddJob(parent context.Context, jobID string) {
	if _, ok := s.active[jobID]; ok {
		return
	}

	if _, ok := s.scheduled[jobID]; ok {
		return
	}

	s.startJob(parent, jobID, nil)
	s.logger.Info("job picked up", slog.String("job_id", jobID))
}

func (s *UploadsSupervisor) handleRetryJob(parent context.Context, jobID string) {
	sj, ok := s.scheduled[jobID]
	if !ok {
		s.logger.Warn("retry_job for unknown scheduled job, ignoring", slog.String("job_id", jobID))

		return
	}

	delete(s.scheduled, jobID)
	s.scheduler.cancel(jobID)

	if sj.fresh {
		s.startJob(parent, jobID, nil)
	} else {
		st := sj.state
		s.startJob(parent, jobID, &st)
	}
}

func (s *UploadsSupervisor) handleScheduleRetryJob(jobID string, seconds int, state uploadsm.State) {
	delete(s.active, jobID)

	s.scheduled[jobID] = scheduledJob{state: state, fresh: false}
	s.scheduler.schedule(jobID, time.Duration(seconds)*time.Second, func() {
		s.post(event{kind: eventRetryJob, jobID: jobID})
	})
}

func (s *UploadsSupervisor) handleReleaseJob(jobID string) {
	delete(s.active, jobID)
}

// handleJobTerminated is the catch-all for executor-goroutine panics: the
// whole job is unconditionally rescheduled from scratch after
// cfg.CrashRetryDelay, with no preserved state (a full rescan picks its
// files back up from data/).
func (s *UploadsSupervisor) handleJobTerminated(jobID string) {
	delete(s.active, jobID)

	s.scheduled[jobID] = scheduledJob{fresh: true}
	s.scheduler.schedule(jobID, s.cfg.CrashRetryDelay, func() {
		s.post(event{kind: eventRetryJob, jobID: jobID})
	})
}

func (s *UploadsSupervisor) startJob(parent context.Context, jobID string, resumeState *uploadsm.State) {
	jobCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	runner := s.factory(jobID, s.makeFeedback(jobID))

	handle := &jobHandle{runner: runner, cancel: cancel, done: done}
	s.active[jobID] = handle

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(done)

		if resumeState != nil {
			runner.RunRetry(jobCtx, *resumeState)
		} else {
			runner.RunFresh(jobCtx)
		}
	}()
}

// makeFeedback returns the callback an executor uses to report its terminal
// or retry-scheduling outcome, tagging it with jobID and posting the
// corresponding mailbox event — this is the only bridge between an
// executor's own goroutine and the supervisor's run loop.
func (s *UploadsSupervisor) makeFeedback(jobID string) jobexecutor.FeedbackFunc {
	return func(fb jobexecutor.Feedback) {
		switch fb.Kind {
		case jobexecutor.FeedbackScheduleRetry:
			seconds := int(fb.Schedule.After / time.Second)
			s.post(event{
				kind:                 eventScheduleRetryJob,
				jobID:                jobID,
				scheduleAfterSeconds: seconds,
				scheduleState:        fb.Schedule.State,
			})
		case jobexecutor.FeedbackRelease:
			s.post(event{kind: eventReleaseJob, jobID: jobID})
		case jobexecutor.FeedbackTerminated:
			s.post(event{kind: eventJobTerminated, jobID: jobID})
		}
	}
}

// computeProgress aggregates active jobs' progress, weighted by each job's
// share of the total file count / byte size. Scheduled (paused) jobs do not
// contribute.
func (s *UploadsSupervisor) computeProgress() Progress {
	var totalFiles int

	var totalSize int64

	type jobProgress struct {
		filesFraction float64
		sizeFraction  float64
		totalFiles    int
		totalSize     int64
	}

	jobs := make([]jobProgress, 0, len(s.active))

	for _, handle := range s.active {
		ff, sf := handle.runner.Progress()
		tf, ts := handle.runner.Totals()

		jobs = append(jobs, jobProgress{filesFraction: ff, sizeFraction: sf, totalFiles: tf, totalSize: ts})
		totalFiles += tf
		totalSize += ts
	}

	var filesRatio, sizeRatio float64

	for _, j := range jobs {
		if totalFiles > 0 {
			filesRatio += j.filesFraction * (float64(j.totalFiles) / float64(totalFiles))
		}

		if totalSize > 0 {
			sizeRatio += j.sizeFraction * (float64(j.totalSize) / float64(totalSize))
		}
	}

	return Progress{FilesFraction: filesRatio, SizeFraction: sizeRatio}
}

// snapshot builds a point-in-time view of the supervisor's bookkeeping, for
// tests to check the active/scheduled/timers invariants. Only ever called
// on the worker goroutine, so no locking is required.
func (s *UploadsSupervisor) snapshot() stateSnapshot {
	snap := stateSnapshot{
		activeIDs:    make([]string, 0, len(s.active)),
		scheduledIDs: make([]string, 0, len(s.scheduled)),
		timerCount:   s.scheduler.len(),
	}

	for id := range s.active {
		snap.activeIDs = append(snap.activeIDs, id)
	}

	for id := range s.scheduled {
		snap.scheduledIDs = append(snap.scheduledIDs, id)
	}

	return snap
}

// stopAll cancels every pending retry timer, requests every active
// executor to stop via context cancellation, bounded-waits on each with
// cfg.ShutdownTimeout using an errgroup, collects per-executor stop errors
// with multierr, then clears both maps.
func (s *UploadsSupervisor) stopAll() error {
	s.scheduler.cancelAll()

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	g := new(errgroup.Group)

	var errMu sync.Mutex

	var joined error

	for jobID, handle := range s.active {
		jobID, handle := jobID, handle

		g.Go(func() error {
			handle.cancel()

			select {
			case <-handle.done:
			case <-time.After(shutdownTimeout):
				errMu.Lock()
				joined = multierr.Append(joined, fmt.Errorf("supervisor: job %s did not stop within %s", jobID, shutdownTimeout))
				errMu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	s.active = make(map[string]*jobHandle)
	s.scheduled = make(map[string]scheduledJob)

	return joined
}

// TriggerScan requests an immediate scan_jobs by posting it to the mailbox.
func (s *UploadsSupervisor) TriggerScan() {
	s.post(event{kind: eventScanJobs})
}

// GetProgress requests the current cross-job aggregate, bounded by
// cfg.ReplyTimeout (or ctx, whichever fires first).
func (s *UploadsSupervisor) GetProgress(ctx context.Context) (Progress, error) {
	reply := make(chan Progress, 1)
	s.post(event{kind: eventGetProgress, progressReply: reply})

	timeout := time.NewTimer(s.cfg.ReplyTimeout)
	defer timeout.Stop()

	select {
	case p := <-reply:
		return p, nil
	case <-timeout.C:
		return Progress{}, errReplyTimeout
	case <-ctx.Done():
		return Progress{}, ctx.Err()
	}
}

// GetJobsN requests the current active-job count, bounded by
// cfg.ReplyTimeout (or ctx, whichever fires first).
func (s *UploadsSupervisor) GetJobsN(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	s.post(event{kind: eventGetJobsN, jobsNReply: reply})

	timeout := time.NewTimer(s.cfg.ReplyTimeout)
	defer timeout.Stop()

	select {
	case n := <-reply:
		return n, nil
	case <-timeout.C:
		return 0, errReplyTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

var errReplyTimeout = errors.New("supervisor: reply timed out")
