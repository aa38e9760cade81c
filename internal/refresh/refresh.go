// Package refresh coordinates materialized view refreshes over the warehouse.
// The gold view is rebuilt from raw prices either concurrently (readers keep
// serving) or blocking; the coordinator decides which path is possible and
// falls back exactly once when the concurrent path fails.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ViewStore abstracts the materialized view operations the coordinator needs.
type ViewStore interface {
	// ViewExists reports whether the materialized view is defined.
	ViewExists(ctx context.Context, view string) (bool, error)
	// HasUniqueIndex reports whether the view carries a unique index,
	// the precondition for a concurrent refresh.
	HasUniqueIndex(ctx context.Context, view string) (bool, error)
	// Refresh rebuilds the view. With concurrent set, readers are not
	// blocked but the view must have a unique index.
	Refresh(ctx context.Context, view string, concurrent bool) error
}

// Coordinator runs view refreshes against a ViewStore.
type Coordinator struct {
	store ViewStore
}

func NewCoordinator(store ViewStore) *Coordinator {
	return &Coordinator{store: store}
}

// Refresh rebuilds view. When preferNonBlocking is set the coordinator
// first checks that a concurrent refresh is possible, silently demoting to a
// blocking refresh when the view lacks a unique index. A failed concurrent
// refresh is retried exactly once in blocking mode; a blocking failure is
// final and propagates.
func (c *Coordinator) Refresh(ctx context.Context, view string, preferNonBlocking bool) error {
	exists, err := c.store.ViewExists(ctx, view)
	if err != nil {
		return fmt.Errorf("failed to check view %s: %w", view, err)
	}
	if !exists {
		return fmt.Errorf("materialized view %s does not exist", view)
	}

	concurrent := preferNonBlocking
	if concurrent {
		hasIndex, err := c.store.HasUniqueIndex(ctx, view)
		if err != nil {
			return fmt.Errorf("failed to check unique index on %s: %w", view, err)
		}
		if !hasIndex {
			log.Warnf("view %s has no unique index, using blocking refresh", view)
			concurrent = false
		}
	}

	start := time.Now()
	if err := c.store.Refresh(ctx, view, concurrent); err != nil {
		if !concurrent {
			return fmt.Errorf("failed to refresh %s: %w", view, err)
		}
		log.Warnf("concurrent refresh of %s failed, retrying blocking: %v", view, err)
		if err := c.store.Refresh(ctx, view, false); err != nil {
			return fmt.Errorf("failed to refresh %s after fallback: %w", view, err)
		}
	}
	log.Infof("refreshed %s in %s (concurrent=%t)", view, time.Since(start).Round(time.Millisecond), concurrent)
	return nil
}

// Tracker batches refresh requests across many file loads. Workers call
// RecordLoads after each successful load and trigger a refresh when Due
// reports true; the caller issues one unconditional refresh at the end of a
// run regardless.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	pending   int
}

// NewTracker returns a tracker that is due every threshold loads.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = 100
	}
	return &Tracker{threshold: threshold}
}

// RecordLoads notes n completed loads since the last refresh.
func (t *Tracker) RecordLoads(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending += n
}

// Due reports whether enough loads have accumulated to warrant a refresh.
func (t *Tracker) Due() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending >= t.threshold
}

// MarkRefreshed resets the pending count after a refresh completes.
func (t *Tracker) MarkRefreshed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = 0
}

// Pending returns the loads accumulated since the last refresh.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
