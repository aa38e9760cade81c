package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeViewStore scripts catalog answers and records every refresh attempt.
type fakeViewStore struct {
	exists      bool
	uniqueIndex bool

	concurrentErr error
	blockingErr   error

	attempts []bool // concurrent flag per Refresh call
}

func (f *fakeViewStore) ViewExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeViewStore) HasUniqueIndex(_ context.Context, _ string) (bool, error) {
	return f.uniqueIndex, nil
}

func (f *fakeViewStore) Refresh(_ context.Context, _ string, concurrent bool) error {
	f.attempts = append(f.attempts, concurrent)
	if concurrent {
		return f.concurrentErr
	}
	return f.blockingErr
}

func TestRefreshConcurrentWhenIndexed(t *testing.T) {
	store := &fakeViewStore{exists: true, uniqueIndex: true}
	c := NewCoordinator(store)

	if err := c.Refresh(context.Background(), "price_gold", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.attempts) != 1 || !store.attempts[0] {
		t.Errorf("expected one concurrent attempt, got %v", store.attempts)
	}
}

func TestRefreshDemotesWithoutUniqueIndex(t *testing.T) {
	store := &fakeViewStore{exists: true, uniqueIndex: false}
	c := NewCoordinator(store)

	if err := c.Refresh(context.Background(), "price_gold", true); err != nil {
		t.Fatalf("demotion must not be an error: %v", err)
	}
	if len(store.attempts) != 1 || store.attempts[0] {
		t.Errorf("expected one blocking attempt after demotion, got %v", store.attempts)
	}
}

func TestRefreshFallsBackExactlyOnce(t *testing.T) {
	store := &fakeViewStore{
		exists:        true,
		uniqueIndex:   true,
		concurrentErr: errors.New("could not obtain lock"),
	}
	c := NewCoordinator(store)

	if err := c.Refresh(context.Background(), "price_gold", true); err != nil {
		t.Fatalf("blocking fallback succeeded, expected no error: %v", err)
	}
	if len(store.attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(store.attempts))
	}
	if !store.attempts[0] || store.attempts[1] {
		t.Errorf("expected concurrent then blocking, got %v", store.attempts)
	}
}

func TestRefreshBlockingFailurePropagates(t *testing.T) {
	store := &fakeViewStore{
		exists:        true,
		uniqueIndex:   true,
		concurrentErr: errors.New("could not obtain lock"),
		blockingErr:   errors.New("out of memory"),
	}
	c := NewCoordinator(store)

	err := c.Refresh(context.Background(), "price_gold", true)
	if err == nil {
		t.Fatal("expected error when fallback also fails")
	}
	if len(store.attempts) != 2 {
		t.Errorf("must not retry beyond one fallback, got %d attempts", len(store.attempts))
	}
}

func TestRefreshBlockingPreferenceNeverFallsBack(t *testing.T) {
	store := &fakeViewStore{
		exists:      true,
		blockingErr: errors.New("out of memory"),
	}
	c := NewCoordinator(store)

	if err := c.Refresh(context.Background(), "price_gold", false); err == nil {
		t.Fatal("expected blocking failure to propagate")
	}
	if len(store.attempts) != 1 {
		t.Errorf("expected single attempt, got %d", len(store.attempts))
	}
}

func TestRefreshMissingView(t *testing.T) {
	store := &fakeViewStore{exists: false}
	c := NewCoordinator(store)

	if err := c.Refresh(context.Background(), "price_gold", true); err == nil {
		t.Fatal("expected error for missing view")
	}
	if len(store.attempts) != 0 {
		t.Errorf("no refresh should be attempted for a missing view")
	}
}

func TestTrackerThreshold(t *testing.T) {
	tr := NewTracker(3)
	if tr.Due() {
		t.Error("fresh tracker must not be due")
	}
	tr.RecordLoads(2)
	if tr.Due() {
		t.Error("below threshold must not be due")
	}
	tr.RecordLoads(1)
	if !tr.Due() {
		t.Error("at threshold must be due")
	}
	tr.MarkRefreshed()
	if tr.Due() || tr.Pending() != 0 {
		t.Error("refresh must reset pending count")
	}
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tr := NewTracker(100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.RecordLoads(1)
			}
		}()
	}
	wg.Wait()
	if tr.Pending() != 100 {
		t.Errorf("expected 100 pending, got %d", tr.Pending())
	}
	if !tr.Due() {
		t.Error("expected tracker due after 100 loads")
	}
}
