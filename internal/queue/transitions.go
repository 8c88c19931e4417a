package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarkQueued transitions the given jobs into the queued state. Jobs already
// transcribing keep their status; everything else becomes eligible for the
// queue worker. Returns the number of jobs transitioned.
func (s *Store) MarkQueued(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusQueued, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs SET status = ?, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status NOT IN ('` +
		string(StatusTranscribing) + `', '` + string(StatusQueued) + `')`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark queued: %w", err)
	}
	return res.RowsAffected()
}

// NextQueued returns the oldest queued job, tie-broken by earliest updated_at
// then earliest created_at. Returns nil when the queue is empty.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY updated_at, created_at LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued: %w", err)
	}
	return job, nil
}

// DemoteQueued reverts all queued jobs back to waiting. Used by a global stop
// so pending work does not auto-resume.
func (s *Store) DemoteQueued(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusWaiting,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("demote queued: %w", err)
	}
	return res.RowsAffected()
}

// ResetStaleRunning marks jobs whose persisted status claims an active session
// as interrupted. Called on daemon start, when no session can exist yet; the
// jobs stay resumable from their last snapshot.
func (s *Store) ResetStaleRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusInterrupted,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusTranscribing,
		StatusPaused,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale running: %w", err)
	}
	return res.RowsAffected()
}

// SaveSnapshot persists the latest in-flight state of a job. The write is an
// idempotent upsert-latest keyed by job id; content is monotonic so
// last-writer-wins is acceptable.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.JobID == "" {
		return errors.New("snapshot requires job id")
	}
	transcription, err := marshalSegments(snap.Segments)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, transcription = ?, transcribe_elapsed = ?,
             transcribe_progress = ?, transcribe_progress_current = ?,
             transcribe_progress_duration = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		snap.Status,
		transcription,
		snap.Elapsed,
		nullableFloat(snap.Percent),
		snap.Current,
		nullableFloat(snap.Duration),
		nullableString(snap.ErrorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		snap.JobID,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SavePauseState persists a pause without touching accumulated segments; the
// segment snapshots already cover those.
func (s *Store) SavePauseState(ctx context.Context, id string, elapsed, current float64, percent, duration *float64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, transcribe_elapsed = ?, transcribe_progress = ?,
             transcribe_progress_current = ?, transcribe_progress_duration = ?, updated_at = ?
         WHERE id = ?`,
		StatusPaused,
		elapsed,
		nullableFloat(percent),
		current,
		nullableFloat(duration),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("save pause state: %w", err)
	}
	return nil
}

// SetStatus updates only the status column.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}
