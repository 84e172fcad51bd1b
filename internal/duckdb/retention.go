package duckdb

import (
	"log"
	"sync"
	"time"
)

// DefaultRetention keeps a week of cycle history.
const DefaultRetention = 7 * 24 * time.Hour

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// pruner is the slice of Store the cleaner needs.
type pruner interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}

// RetentionCleaner periodically deletes cycles older than the retention
// period.
type RetentionCleaner struct {
	store     pruner
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewRetentionCleaner creates a retention cleaner and runs one cleanup
// immediately. Returns nil when retention is negative (disabled).
func NewRetentionCleaner(store pruner, conf ...RetentionConfig) *RetentionCleaner {
	retention := DefaultRetention
	interval := time.Hour
	if len(conf) > 0 {
		if conf[0].Retention != 0 {
			retention = conf[0].Retention
		}
		if conf[0].Interval > 0 {
			interval = conf[0].Interval
		}
	}
	if retention < 0 {
		return nil
	}

	rc := &RetentionCleaner{
		store:     store,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}

	// Startup cleanup to catch up after downtime.
	rc.cleanup()

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
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := time.Now().Add(-rc.retention)

	rows, err := rc.store.DeleteBefore(cutoff)
	if err != nil {
		log.Printf("duckdb: retention cleanup error: %v", err)
		return
	}
	if rows > 0 {
		log.Printf("duckdb: retention cleanup deleted %d cycles (older than %s)", rows, rc.retention)
	}
}

// Stop signals the cleaner to stop and waits for it to finish. Safe on a
// nil cleaner and safe to call more than once.
func (rc *RetentionCleaner) Stop() {
	if rc == nil {
		return
	}
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
