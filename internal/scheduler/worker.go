package scheduler

import (
	"context"
	"errors"
	"time"

	"scribe/internal/logging"
)

// ensureWorker spawns the queue worker unless one is already draining.
// Worker creation is mutually exclusive: concurrent enqueue requests share a
// single instance, created lazily and torn down when the queue empties.
func (s *Scheduler) ensureWorker() {
	s.mu.Lock()
	if s.workerActive || s.runCtx == nil {
		s.mu.Unlock()
		return
	}
	s.workerActive = true
	ctx := s.runCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go s.drainQueue(ctx)
}

func (s *Scheduler) drainQueue(ctx context.Context) {
	defer s.wg.Done()
	logger := s.logger.With(logging.String("component", "queue-worker"))
	logger.Debug("queue worker started")

	for {
		select {
		case <-ctx.Done():
			s.deactivateWorker()
			return
		default:
		}

		// Back-pressure by polling: new work can arrive from any request
		// handler, so a busy slot is re-checked rather than blocked on.
		if s.RunningJobID() != "" {
			if !s.sleep(ctx) {
				s.deactivateWorker()
				return
			}
			continue
		}

		job, err := s.store.NextQueued(ctx)
		if err != nil {
			logger.Error("fetch next queued job failed", logging.Error(err))
			if !s.sleep(ctx) {
				s.deactivateWorker()
				return
			}
			continue
		}
		if job == nil {
			s.deactivateWorker()
			// An enqueue may have landed between the fetch and the flag
			// flip; re-check so it is not stranded.
			if again, err := s.store.NextQueued(ctx); err == nil && again != nil {
				s.ensureWorker()
			}
			logger.Debug("queue drained, worker exiting")
			return
		}

		if _, err := s.run(ctx, job); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyRunning):
				// A direct submit grabbed the slot between checks.
				if !s.sleep(ctx) {
					s.deactivateWorker()
					return
				}
			case errors.Is(err, ErrCancelled):
				logger.Info("queued job interrupted", logging.String("job_id", job.ID))
			default:
				// Already persisted as status error; one bad file must not
				// stall the queue.
				logger.Error("queued job failed",
					logging.String("job_id", job.ID), logging.Error(err))
			}
		}
	}
}

func (s *Scheduler) deactivateWorker() {
	s.mu.Lock()
	s.workerActive = false
	s.mu.Unlock()
}

func (s *Scheduler) sleep(ctx context.Context) bool {
	select {
	case <-time.After(s.pollInterval):
		return true
	case <-ctx.Done():
		return false
	}
}
