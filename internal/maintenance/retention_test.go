package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeRetentionStore struct {
	calls   int
	gotDays int
	err     error
}

func (f *fakeRetentionStore) CleanupWebhookEvents(_ context.Context, retentionDays int) (int64, error) {
	f.calls++
	f.gotDays = retentionDays
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestRetentionSchedulerRunNow(t *testing.T) {
	store := &fakeRetentionStore{}
	s := NewRetentionScheduler(store, 90, zerolog.Nop())

	s.RunNow()

	if store.calls != 1 {
		t.Fatalf("expected 1 cleanup call, got %d", store.calls)
	}
	if store.gotDays != 90 {
		t.Errorf("expected retention days 90, got %d", store.gotDays)
	}
}

func TestRetentionSchedulerCleanupErrorDoesNotPanic(t *testing.T) {
	store := &fakeRetentionStore{err: errors.New("db down")}
	s := NewRetentionScheduler(store, 30, zerolog.Nop())

	s.RunNow()

	if store.calls != 1 {
		t.Fatalf("expected 1 cleanup call, got %d", store.calls)
	}
}

func TestRetentionSchedulerStartStop(t *testing.T) {
	s := NewRetentionScheduler(&fakeRetentionStore{}, 30, zerolog.Nop())

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected second start to fail")
	}

	<-s.Stop().Done()

	// Stopping twice is safe.
	<-s.Stop().Done()
}
