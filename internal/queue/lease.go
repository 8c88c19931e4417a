package queue

import (
	"context"
	"fmt"
	"time"
)

// The scheduler lease is a single persisted row preventing two scheduler
// processes from both believing they own the executor after an unclean
// restart. It is a liveness safeguard, not a consensus protocol.

// TryAcquireLease attempts an atomic conditional takeover of the lease. It
// succeeds when the lease is unowned, already owned by owner, or stale (not
// refreshed within staleness).
func (s *Store) TryAcquireLease(ctx context.Context, owner string, staleness time.Duration) (bool, error) {
	if owner == "" {
		return false, fmt.Errorf("lease owner must not be empty")
	}
	now := time.Now().UTC()
	cutoff := now.Add(-staleness).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scheduler_lease SET owner = ?, updated_at = ?
         WHERE id = 1 AND (owner = '' OR owner = ? OR updated_at < ?)`,
		owner,
		now.Format(time.RFC3339Nano),
		owner,
		cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease rows: %w", err)
	}
	return affected > 0, nil
}

// TouchLease refreshes the heartbeat timestamp; no-op when not the owner.
func (s *Store) TouchLease(ctx context.Context, owner string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE scheduler_lease SET updated_at = ? WHERE id = 1 AND owner = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		owner,
	)
	if err != nil {
		return fmt.Errorf("touch lease: %w", err)
	}
	return nil
}

// ReleaseLease clears the lease on graceful shutdown; no-op when not the owner.
func (s *Store) ReleaseLease(ctx context.Context, owner string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE scheduler_lease SET owner = '', updated_at = '' WHERE id = 1 AND owner = ?`,
		owner,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// LeaseOwner reports the current lease owner, empty when unowned.
func (s *Store) LeaseOwner(ctx context.Context) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM scheduler_lease WHERE id = 1`).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("read lease owner: %w", err)
	}
	return owner, nil
}
