package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/internal/state"
)

type failingLog struct{}

func (failingLog) TouchRate(context.Context, string, time.Time, time.Duration) (bool, error) {
	return false, errors.New("disk on fire")
}

func TestLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(state.NewMemoryStore())
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(ctx, "10.0.0.1"); !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("second request: %v", err)
	}
	if err := l.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other address: %v", err)
	}

	now = now.Add(900 * time.Millisecond)
	if err := l.Allow(ctx, "10.0.0.1"); !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("rejected request must not reset the window: %v", err)
	}

	now = now.Add(100 * time.Millisecond)
	if err := l.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("after interval: %v", err)
	}
}

func TestLimiterBackendError(t *testing.T) {
	l := New(failingLog{})
	err := l.Allow(context.Background(), "10.0.0.1")
	if err == nil || errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("backend failure reported as %v", err)
	}
}
