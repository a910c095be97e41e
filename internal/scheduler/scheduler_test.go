package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunInvokesTicks(t *testing.T) {
	s := New(Options{Name: "test", Interval: 10 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, now time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}
}

func TestRunImmediately(t *testing.T) {
	s := New(Options{Name: "test", Interval: time.Hour, RunImmediately: true}, zerolog.Nop())

	ran := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = s.Run(ctx, func(ctx context.Context, now time.Time) error {
			close(ran)
			return nil
		})
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate tick did not run")
	}
}

func TestStartupDelayHonoursCancellation(t *testing.T) {
	s := New(Options{Name: "test", Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, func(ctx context.Context, now time.Time) error {
		t.Fatal("tick must not run during startup delay")
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestTickErrorDoesNotStopLoop(t *testing.T) {
	s := New(Options{Name: "test", Interval: 5 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, now time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return errors.New("fetch failed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not survive tick errors")
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected the loop to keep ticking, got %d", ticks.Load())
	}
}

func TestNonPositiveIntervalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Options{Name: "test"}, zerolog.Nop())
}
