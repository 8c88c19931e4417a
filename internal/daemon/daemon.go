// Package daemon runs the scribe background process: single-instance lock,
// scheduler lease with heartbeat, and the HTTP API server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/ingest"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/scheduler"
)

// Daemon coordinates the scheduler and API server and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	scheduler *scheduler.Scheduler
	registrar *ingest.Registrar
	api       *apiServer

	lockPath   string
	lock       *flock.Flock
	leaseOwner string

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	LeaseOwner   string
	RunningJobID string
	QueueStats   map[queue.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, eng engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "scribe"
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		scheduler:  scheduler.New(cfg, store, eng, logger),
		registrar:  ingest.New(store, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		leaseOwner: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the process lock and scheduler lease, resets jobs stranded
// by an unclean shutdown, and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	staleness := time.Duration(d.cfg.Workflow.LeaseStalenessSeconds) * time.Second
	acquired, err := d.store.TryAcquireLease(ctx, d.leaseOwner, staleness)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("acquire scheduler lease: %w", err)
	}
	if !acquired {
		_ = d.lock.Unlock()
		owner, _ := d.store.LeaseOwner(ctx)
		return fmt.Errorf("scheduler lease held by %s", owner)
	}

	// Rows claiming a live session cannot have one: no scheduler ran until
	// now. They stay resumable from their last snapshot.
	reset, err := d.store.ResetStaleRunning(ctx)
	if err != nil {
		_ = d.store.ReleaseLease(ctx, d.leaseOwner)
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stale jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("stranded jobs marked interrupted", logging.Int64("count", reset))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.teardown()
		return fmt.Errorf("start api server: %w", err)
	}

	d.wg.Add(1)
	go d.heartbeatLoop(d.ctx)

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("lease_owner", d.leaseOwner),
	)
	return nil
}

// Stop stops background processing and releases the lease and lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.scheduler.Stop()
	d.wg.Wait()
	d.teardown()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

func (d *Daemon) teardown() {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.store.ReleaseLease(releaseCtx, d.leaseOwner); err != nil {
		d.logger.Warn("failed to release scheduler lease", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// heartbeatLoop refreshes the scheduler lease so a healthy daemon is never
// treated as stale.
func (d *Daemon) heartbeatLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := time.Duration(d.cfg.Workflow.LeaseHeartbeatSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.TouchLease(ctx, d.leaseOwner); err != nil && ctx.Err() == nil {
				d.logger.Warn("lease heartbeat failed", logging.Error(err))
			}
		}
	}
}

// Status reports current daemon state.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats failed", logging.Error(err))
	}
	owner, err := d.store.LeaseOwner(ctx)
	if err != nil {
		d.logger.Warn("lease owner lookup failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		LeaseOwner:   owner,
		RunningJobID: d.scheduler.RunningJobID(),
		QueueStats:   stats,
	}
}

// Scheduler exposes the daemon's scheduler.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// APIAddr returns the bound API address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
