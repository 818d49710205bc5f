// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nfosync/nfosync/internal/config"
)

// TestMain asserts the Service event loop and everything it spawns under
// Run (bus subscriber fan-in goroutines, the schedule ticker, the loop
// goroutine) leave no goroutine behind once Run returns, matching the
// lifecycle discipline spec.md §5 requires of the single-threaded event
// loop's supervising goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestService_RunStopsCleanlyOnContextCancel(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) {
		c.Triggers.SyncOnStart = false
		c.Scheduled.IsEnabled = false
		c.Periodic.IsEnabled = false
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Give the loop a moment to reach its select before tearing it down.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestService_SnapshotReflectsIdleState(t *testing.T) {
	svc := newTestService(t, nil)

	snap := svc.Snapshot()
	if snap.Scheduler.ActiveType != "" {
		t.Fatalf("expected no active action on a freshly constructed service, got %q", snap.Scheduler.ActiveType)
	}
	if snap.Playing {
		t.Fatal("expected playing=false on a freshly constructed service")
	}
}
