package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Name           string
	Interval       time.Duration
	StartupDelay   time.Duration
	RunImmediately bool
}

// Scheduler drives one repeating job. A tick that fails is logged and
// dropped; the next tick retries with fresh state. The loop stops only
// on context cancellation.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts: opts,
		logger: logger.With().
			Str("component", "scheduler").
			Str("job", opts.Name).
			Logger(),
	}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunImmediately {
		s.invoke(ctx, tick, time.Now())
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.invoke(ctx, tick, now)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, tick TickFunc, now time.Time) {
	if err := tick(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("tick execution failed")
	}
}
