package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/queue"
)

// Scheduler owns the single transcription slot, the live progress map, and
// the lazily-created queue worker. All mutable scheduler state lives here
// with an explicit lifecycle; nothing is ambient.
type Scheduler struct {
	store  *queue.Store
	engine engine.Engine
	logger *slog.Logger

	pollInterval time.Duration
	cancelWait   time.Duration
	stopWait     time.Duration

	progress *Tracker

	mu           sync.Mutex
	session      *session
	workerActive bool
	runCtx       context.Context
	cancel       context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a scheduler.
func New(cfg *config.Config, store *queue.Store, eng engine.Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		store:        store,
		engine:       eng,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		cancelWait:   time.Duration(cfg.Workflow.CancelWaitMS) * time.Millisecond,
		stopWait:     time.Duration(cfg.Workflow.StopWaitMS) * time.Millisecond,
		progress:     NewTracker(),
	}
}

// Start binds the scheduler to a lifecycle context and revives any queued
// backlog. Until Start is called, Enqueue records intent without spawning a
// worker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.runCtx != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	backlog, err := s.store.NextQueued(ctx)
	if err != nil {
		return fmt.Errorf("inspect queued backlog: %w", err)
	}
	if backlog != nil {
		s.ensureWorker()
	}
	return nil
}

// Stop interrupts the in-flight run, waits (bounded) for it to settle, and
// tears down the worker. Queued jobs keep their status for the next start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.runCtx = nil
	sess := s.session
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		sess.stop.Store(true)
		sess.gate.Open()
		select {
		case <-sess.done:
		case <-time.After(s.stopWait):
		}
	}
	s.wg.Wait()
}

// Submit runs the job through the single slot, blocking until completion.
// Fails with ErrAlreadyRunning when the slot is occupied.
func (s *Scheduler) Submit(ctx context.Context, id string) ([]queue.Segment, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := os.Stat(job.SourcePath); err != nil {
		return nil, fmt.Errorf("%w: media file %s missing on disk", ErrNotFound, job.SourcePath)
	}
	return s.run(ctx, job)
}

// Pause closes the gate of the running job and freezes its stopwatch. The
// engine call is not torn down: the consumer parks at the gate so resume is
// immediate and loses nothing.
func (s *Scheduler) Pause(ctx context.Context, id string) error {
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.jobID != id {
		s.mu.Unlock()
		job, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: job %s is not transcribing", ErrPrecondition, id)
	}
	if !sess.gate.IsOpen() {
		s.mu.Unlock()
		return fmt.Errorf("%w: job %s is already paused", ErrPrecondition, id)
	}
	sess.gate.Close()
	elapsed := sess.watch.Pause()
	path := sess.path
	s.mu.Unlock()

	entry, ok := s.progress.Get(path)
	if !ok {
		entry = Entry{}
	}
	entry.Status = queue.StatusPaused
	s.progress.Set(path, entry)

	s.logger.Info("transcription paused",
		logging.String("job_id", id),
		logging.Float64("elapsed_seconds", elapsed),
		logging.Float64("current", entry.Current),
	)
	return s.store.SavePauseState(ctx, id, elapsed, entry.Current, entry.Percent, entry.Duration)
}

// ResumeResult reports how a resume request was satisfied.
type ResumeResult struct {
	// Reopened is true when a live paused session was resumed in place.
	Reopened bool
	// Segments holds the full transcript when the resume had to re-run the
	// job from its resolved offset (no live session existed).
	Segments []queue.Segment
}

// Resume reopens a live paused session, or re-runs the job from its resolved
// resume offset when the process-local session is gone.
func (s *Scheduler) Resume(ctx context.Context, id string) (*ResumeResult, error) {
	s.mu.Lock()
	sess := s.session
	if sess != nil && sess.jobID == id {
		if sess.gate.IsOpen() {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: job %s is not paused", ErrPrecondition, id)
		}
		sess.watch.Resume()
		sess.gate.Open()
		path := sess.path
		s.mu.Unlock()

		if entry, ok := s.progress.Get(path); ok {
			entry.Status = queue.StatusTranscribing
			s.progress.Set(path, entry)
		}
		if err := s.store.SetStatus(ctx, id, queue.StatusTranscribing); err != nil {
			return nil, err
		}
		s.logger.Info("transcription resumed", logging.String("job_id", id))
		return &ResumeResult{Reopened: true}, nil
	}
	s.mu.Unlock()

	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !job.ResumeEligible() {
		return nil, fmt.Errorf("%w: job %s has status %s", ErrPrecondition, id, job.Status)
	}

	segments, err := s.run(ctx, job)
	if err != nil {
		return nil, err
	}
	return &ResumeResult{Segments: segments}, nil
}

// Cancel stops the given job if it currently holds the slot, waiting up to
// the per-job cancel timeout for the run to settle. Cancelling a job that is
// not running is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.jobID != id {
		s.mu.Unlock()
		return nil
	}
	sess.stop.Store(true)
	sess.gate.Open()
	done := sess.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(s.cancelWait):
		// Timeout expiry does not retry: the run will settle eventually.
	case <-ctx.Done():
	}
	return nil
}

// CancelAll stops the in-flight run (bounded by the global stop timeout) and
// reverts queued jobs to waiting so nothing auto-resumes. Returns the
// interrupted job id, if any, and the number of demoted queued jobs.
func (s *Scheduler) CancelAll(ctx context.Context) (string, int64, error) {
	// Demote first so the worker cannot pick up new work mid-stop.
	demoted, err := s.store.DemoteQueued(ctx)
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	var interrupted string
	if sess != nil {
		interrupted = sess.jobID
		sess.stop.Store(true)
		sess.gate.Open()
		select {
		case <-sess.done:
		case <-time.After(s.stopWait):
		case <-ctx.Done():
		}
	}
	if demoted > 0 || interrupted != "" {
		s.logger.Info("transcriptions stopped",
			logging.String("interrupted_job", interrupted),
			logging.Int64("demoted", demoted),
		)
	}
	return interrupted, demoted, nil
}

// Enqueue marks the jobs queued and makes sure a worker is draining.
func (s *Scheduler) Enqueue(ctx context.Context, ids ...string) (int64, error) {
	queued, err := s.store.MarkQueued(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if queued > 0 {
		s.ensureWorker()
	}
	return queued, nil
}

// IsRunning reports whether the media at path is held by the current session,
// paused or not.
func (s *Scheduler) IsRunning(path string) bool {
	normalized := NormalizePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.path == normalized
}

// RunningJobID returns the id of the job holding the slot, empty when idle.
func (s *Scheduler) RunningJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.jobID
}

// Progress returns the live progress entry for a job, falling back to its
// persisted snapshot when no session covers it. A process restart between a
// pause and the next poll therefore still reports consistent numbers.
func (s *Scheduler) Progress(ctx context.Context, id string) (Entry, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if job == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if entry, ok := s.progress.Get(NormalizePath(job.SourcePath)); ok {
		return entry, nil
	}
	return Entry{
		Current:  job.ProgressCurrent,
		Duration: job.ProgressDuration,
		Percent:  job.ProgressPercent,
		Status:   job.Status,
	}, nil
}
