package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
)

func TestLoopRunsInitialSweepAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	var claims, requeues atomic.Int64
	notifRepo := &fakeNotificationRepo{
		claimDueFn: func(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
			claims.Add(1)
			return nil, nil
		},
		requeueStaleFn: func(ctx context.Context, olderThan time.Time) (int64, error) {
			requeues.Add(1)
			return 0, nil
		},
	}

	env := newTestEnv(t, notifRepo, &fakeProviderRepo{}, &fakeSender{}, Options{})

	loop, err := NewLoop(env.dispatcher, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewLoop() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Start(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for claims.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	// With an hour-long interval, only the initial sweep should have run.
	if got := claims.Load(); got != 1 {
		t.Fatalf("claims = %d, want 1", got)
	}
	// Each sweep recovers stale rows before claiming.
	if got := requeues.Load(); got != 1 {
		t.Fatalf("requeues = %d, want 1", got)
	}
}

func TestNewLoopRequiresDispatcher(t *testing.T) {
	t.Parallel()

	if _, err := NewLoop(nil, time.Second, nil); err == nil {
		t.Fatal("NewLoop() should reject a nil dispatcher")
	}
}
