package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pruner deletes events older than a cutoff.
type Pruner interface {
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	Days     int
	Interval time.Duration // between sweeps; defaults to one hour
	Logger   *slog.Logger
	Now      func() time.Time
}

// RetentionCleaner periodically deletes events older than the configured
// retention period.
type RetentionCleaner struct {
	store    Pruner
	days     int
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRetentionCleaner creates a retention cleaner and runs one sweep
// immediately to catch up after downtime. Returns nil when retention is 0
// (disabled).
func NewRetentionCleaner(store Pruner, conf RetentionConfig) *RetentionCleaner {
	if conf.Days <= 0 {
		return nil
	}
	rc := &RetentionCleaner{
		store:    store,
		days:     conf.Days,
		interval: conf.Interval,
		log:      conf.Logger,
		now:      conf.Now,
		done:     make(chan struct{}),
	}
	if rc.interval <= 0 {
		rc.interval = time.Hour
	}
	if rc.log == nil {
		rc.log = slog.Default()
	}
	if rc.now == nil {
		rc.now = time.Now
	}

	rc.Sweep(context.Background())

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.Sweep(context.Background())
		case <-rc.done:
			return
		}
	}
}

// Sweep deletes expired events once and returns how many were removed.
func (rc *RetentionCleaner) Sweep(ctx context.Context) int64 {
	cutoff := rc.now().Add(-time.Duration(rc.days) * 24 * time.Hour)

	n, err := rc.store.PruneExpired(ctx, cutoff)
	if err != nil {
		rc.log.Error("retention cleanup failed", "err", err)
		return 0
	}
	if n > 0 {
		rc.log.Info("retention cleanup deleted expired events", "count", n, "days", rc.days)
	}
	return n
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
