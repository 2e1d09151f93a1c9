// Package daemon runs the long-lived service process: it enforces
// single-instance execution, dispatches inbound transport events to the
// application core, sweeps stale artifacts on a timer, and serves the health
// endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"thumbpress/internal/app"
	"thumbpress/internal/config"
	"thumbpress/internal/logging"
	"thumbpress/internal/staging"
	"thumbpress/internal/transport"
)

// Daemon coordinates the background services.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	core      *app.Core
	listener  transport.Listener
	responder transport.Responder

	lockPath string
	lock     *flock.Flock
	health   *healthServer

	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	userLocks sync.Map
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, core *app.Core, listener transport.Listener, responder transport.Responder, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || core == nil || listener == nil || responder == nil {
		return nil, errors.New("daemon requires config, core, listener, and responder")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "thumbpress.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		core:      core,
		listener:  listener,
		responder: responder,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.health = newHealthServer(cfg, d, logger)
	return d, nil
}

// LockPath returns the single-instance lock location.
func (d *Daemon) LockPath() string { return d.lockPath }

// HealthAddr returns the bound health endpoint address, or an empty string
// when the server is disabled or not started.
func (d *Daemon) HealthAddr() string { return d.health.addr() }

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// Start acquires the instance lock and launches the dispatch loop, the
// cleanup ticker, and the health server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another thumbpress instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.health.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.wg.Add(2)
	go d.dispatchLoop()
	go d.cleanupLoop()

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background work and releases the instance lock. Safe to call
// more than once.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.listener.Close()
	d.wg.Wait()
	d.health.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// dispatchLoop fans events out to per-event goroutines. Events for the same
// user serialize on a per-user lock so session transitions stay ordered; a
// long transcode for one user never delays another user's events. Transcode
// concurrency is capped by the core's worker pool, not here.
func (d *Daemon) dispatchLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.listener.Done():
			return
		case event := <-d.listener.Events():
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				lock := d.userLock(event.UserID)
				lock.Lock()
				defer lock.Unlock()
				d.handleEvent(event)
			}()
		}
	}
}

func (d *Daemon) userLock(userID int64) *sync.Mutex {
	lock, _ := d.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (d *Daemon) cleanupLoop() {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Cleanup.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.sweepArtifacts()
		}
	}
}

func (d *Daemon) sweepArtifacts() {
	maxAge := time.Duration(d.cfg.Cleanup.MaxArtifactAgeMin) * time.Minute
	removed := 0
	for _, dir := range []string{d.cfg.DownloadsDir(), d.cfg.OutputsDir()} {
		result := staging.CleanExpired(dir, maxAge, d.logger)
		removed += len(result.Removed)
	}
	if removed > 0 {
		d.logger.Info("stale artifacts removed",
			logging.Int("count", removed),
			logging.String(logging.FieldEventType, "cleanup_sweep"))
	}
}
