package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"scribe/internal/logging"
	"scribe/internal/queue"
)

const (
	snapshotEverySegments = 5
	snapshotMinInterval   = 2 * time.Second
	terminalPersistWait   = 5 * time.Second
)

// session tracks the single currently-running job. It exists only while a job
// is active or paused and is destroyed once the run settles.
type session struct {
	jobID string
	path  string
	gate  *Gate
	stop  atomic.Bool
	watch *Stopwatch
	done  chan struct{}
}

// liveStatus derives the status a snapshot should carry. A closed gate means
// a pause request won the race against the in-flight segment, so its write
// must not resurrect the transcribing state.
func (sess *session) liveStatus() queue.Status {
	if sess.gate.IsOpen() {
		return queue.StatusTranscribing
	}
	return queue.StatusPaused
}

// run executes one job through the single slot, blocking until the run
// settles. The session identity is cleared only after all terminal
// persistence completes, so "is X running" never reports a false negative
// mid-teardown.
func (s *Scheduler) run(ctx context.Context, job *queue.Job) ([]queue.Segment, error) {
	path := NormalizePath(job.SourcePath)

	s.mu.Lock()
	if s.session != nil {
		occupant := s.session.jobID
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s holds the slot", ErrAlreadyRunning, occupant)
	}
	sess := &session{
		jobID: job.ID,
		path:  path,
		gate:  NewGate(),
		watch: NewStopwatch(),
		done:  make(chan struct{}),
	}
	offset, prior := resumePoint(job)
	base := 0.0
	if offset > 0 {
		base = job.ElapsedSeconds
	}
	sess.watch.Set(base, true)
	s.session = sess
	s.mu.Unlock()

	segments, err := s.consume(ctx, sess, job, offset, prior)

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	close(sess.done)
	return segments, err
}

// resumePoint resolves where the engine should restart decoding: the end of
// the last accumulated segment, else the last persisted progress position,
// else zero. Accumulated segments are prepended, never re-produced.
func resumePoint(job *queue.Job) (float64, []queue.Segment) {
	if end := job.LastSegmentEnd(); end > 0 {
		return end, job.Segments
	}
	if job.ProgressCurrent > 0 {
		return job.ProgressCurrent, nil
	}
	return 0, nil
}

func (s *Scheduler) consume(ctx context.Context, sess *session, job *queue.Job, offset float64, prior []queue.Segment) ([]queue.Segment, error) {
	job.Status = queue.StatusTranscribing
	job.ErrorMessage = ""
	if err := s.store.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("persist transcribing status: %w", err)
	}

	logger := s.logger.With(
		logging.String("component", "executor"),
		logging.String("job_id", job.ID),
	)
	logger.Info("transcription started",
		logging.String("source", job.SourcePath),
		logging.Float64("resume_offset", offset),
		logging.Int("prior_segments", len(prior)),
	)

	stream, duration, err := s.engine.Transcribe(ctx, job.SourcePath, offset)
	if err != nil {
		return nil, s.finishEngineFailure(sess, job.ID, prior, offset, nil, err)
	}
	defer stream.Close()

	if duration <= 0 && job.ProgressDuration != nil {
		duration = *job.ProgressDuration
	}
	var durationPtr *float64
	if duration > 0 {
		d := duration
		durationPtr = &d
	}

	s.progress.Set(sess.path, liveEntry(offset, durationPtr, queue.StatusTranscribing))

	segments := append([]queue.Segment(nil), prior...)
	current := offset
	produced := 0
	lastSnapshot := time.Now()

	for {
		// Gate first: true suspension with zero busy-waiting. The stop flag
		// is observed after the gate so a cancel on a parked job unwinds as
		// soon as the gate is forced open.
		if err := sess.gate.Wait(ctx); err != nil {
			return segments, s.finishInterrupted(sess, job.ID, segments, current, durationPtr)
		}
		if sess.stop.Load() {
			return segments, s.finishInterrupted(sess, job.ID, segments, current, durationPtr)
		}

		segment, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sess.stop.Load() || ctx.Err() != nil {
				return segments, s.finishInterrupted(sess, job.ID, segments, current, durationPtr)
			}
			return segments, s.finishEngineFailure(sess, job.ID, segments, current, durationPtr, err)
		}

		segments = append(segments, segment)
		produced++
		current = segment.End
		s.progress.Set(sess.path, liveEntry(current, durationPtr, sess.liveStatus()))

		// Bounded snapshot cadence: first segment, then every 5th segment or
		// after >=2s, whichever comes first. Failures are swallowed so a
		// storage hiccup cannot abort a long transcription.
		if produced == 1 || produced%snapshotEverySegments == 0 || time.Since(lastSnapshot) >= snapshotMinInterval {
			snap := s.snapshotOf(sess, job.ID, segments, current, durationPtr, sess.liveStatus())
			if err := s.store.SaveSnapshot(ctx, snap); err != nil {
				logger.Debug("snapshot persist failed", logging.Error(err))
			}
			lastSnapshot = time.Now()
		}
	}

	// Normal exhaustion: 100% when the duration is known, final snapshot
	// surfaced to the caller on failure.
	elapsed := sess.watch.Pause()
	if durationPtr != nil {
		current = *durationPtr
	}
	s.progress.Clear(sess.path)

	snap := queue.Snapshot{
		JobID:    job.ID,
		Status:   queue.StatusDone,
		Segments: segments,
		Elapsed:  elapsed,
		Current:  current,
		Duration: durationPtr,
		Percent:  donePercent(durationPtr),
	}
	persistCtx, cancel := context.WithTimeout(context.Background(), terminalPersistWait)
	defer cancel()
	if err := s.store.SaveSnapshot(persistCtx, snap); err != nil {
		return segments, fmt.Errorf("persist completion: %w", err)
	}

	logger.Info("transcription completed",
		logging.Int("segments", len(segments)),
		logging.Float64("elapsed_seconds", elapsed),
	)
	return segments, nil
}

func donePercent(duration *float64) *float64 {
	if duration == nil || *duration <= 0 {
		return nil
	}
	p := 100.0
	return &p
}

func (s *Scheduler) snapshotOf(sess *session, jobID string, segments []queue.Segment, current float64, duration *float64, status queue.Status) queue.Snapshot {
	entry := liveEntry(current, duration, status)
	return queue.Snapshot{
		JobID:    jobID,
		Status:   status,
		Segments: segments,
		Elapsed:  sess.watch.Elapsed(),
		Current:  entry.Current,
		Duration: duration,
		Percent:  entry.Percent,
	}
}

// finishInterrupted persists the interrupted state so the job can resume from
// its last segment, then reports ErrCancelled. Uses a detached context: the
// request context is usually already cancelled by this point.
func (s *Scheduler) finishInterrupted(sess *session, jobID string, segments []queue.Segment, current float64, duration *float64) error {
	elapsed := sess.watch.Pause()
	s.progress.Clear(sess.path)

	entry := liveEntry(current, duration, queue.StatusInterrupted)
	snap := queue.Snapshot{
		JobID:    jobID,
		Status:   queue.StatusInterrupted,
		Segments: segments,
		Elapsed:  elapsed,
		Current:  entry.Current,
		Duration: duration,
		Percent:  entry.Percent,
	}
	persistCtx, cancel := context.WithTimeout(context.Background(), terminalPersistWait)
	defer cancel()
	if err := s.store.SaveSnapshot(persistCtx, snap); err != nil {
		s.logger.Warn("persist interrupted state failed",
			logging.String("job_id", jobID), logging.Error(err))
	}
	s.logger.Info("transcription interrupted",
		logging.String("job_id", jobID),
		logging.Int("segments", len(segments)),
		logging.Float64("elapsed_seconds", elapsed),
	)
	return fmt.Errorf("%w: job %s", ErrCancelled, jobID)
}

// finishEngineFailure marks the job as error with its elapsed time frozen and
// reports ErrEngine. The queue worker continues with the next job.
func (s *Scheduler) finishEngineFailure(sess *session, jobID string, segments []queue.Segment, current float64, duration *float64, cause error) error {
	elapsed := sess.watch.Pause()
	s.progress.Clear(sess.path)

	entry := liveEntry(current, duration, queue.StatusError)
	snap := queue.Snapshot{
		JobID:        jobID,
		Status:       queue.StatusError,
		Segments:     segments,
		Elapsed:      elapsed,
		Current:      entry.Current,
		Duration:     duration,
		Percent:      entry.Percent,
		ErrorMessage: cause.Error(),
	}
	persistCtx, cancel := context.WithTimeout(context.Background(), terminalPersistWait)
	defer cancel()
	if err := s.store.SaveSnapshot(persistCtx, snap); err != nil {
		s.logger.Warn("persist error state failed",
			logging.String("job_id", jobID), logging.Error(err))
	}
	s.logger.Error("transcription failed",
		logging.String("job_id", jobID), logging.Error(cause))
	return fmt.Errorf("%w: %w", ErrEngine, cause)
}
