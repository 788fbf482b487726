package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestService_AddJob(t *testing.T) {
	s := NewService()

	if err := s.AddJob("sweep", "@every 6h", func() {}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0] != "sweep" {
		t.Errorf("jobs[0] = %q, want sweep", jobs[0])
	}
}

func TestService_AddJob_DuplicateName(t *testing.T) {
	s := NewService()

	if err := s.AddJob("sweep", "@every 1h", func() {}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.AddJob("sweep", "@every 2h", func() {}); err == nil {
		t.Error("expected error for duplicate job name")
	}
}

func TestService_AddJob_InvalidSpec(t *testing.T) {
	s := NewService()

	if err := s.AddJob("bad", "not a schedule", func() {}); err == nil {
		t.Error("expected error for invalid spec")
	}
	if len(s.Jobs()) != 0 {
		t.Error("failed registration must not be listed")
	}
}

func TestService_ExecutesJob(t *testing.T) {
	s := NewService()

	var runs int64
	// Six-field spec, fires every second
	if err := s.AddJob("tick", "* * * * * *", func() {
		atomic.AddInt64(&runs, 1)
	}); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt64(&runs) == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestService_StartStop(t *testing.T) {
	s := NewService()
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx) // second start is a no-op
	s.Stop()
	s.Stop() // second stop is a no-op
}

func TestService_StopsOnContextCancel(t *testing.T) {
	s := NewService()
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	cancel()

	// Give the watcher goroutine a moment to observe the cancel
	time.Sleep(100 * time.Millisecond)

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		t.Error("service should stop when the context is cancelled")
	}
}
