package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"moexwatch/internal/scheduler"
)

// Run executes the long-running tracking service: bootstrap once, then
// drive the fast price cycle and the slow chart cycle until a signal
// arrives. The snapshot is saved one final time on shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Config.ValidateDelivery(); err != nil {
		return err
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := a.newService(loc)

	a.Logger.Info().
		Str("security", a.Config.Moex.Security).
		Ints64("chats", a.Config.Telegram.ChatIDs).
		Msg("starting index tracking service")

	if err := svc.Bootstrap(ctx); err != nil {
		return err
	}

	priceLoop := scheduler.New(scheduler.Options{
		Name:     "price",
		Interval: a.Config.Scheduler.PriceUpdateInterval,
	}, a.Logger)

	// Bootstrap already produced the first chart, so the slow loop
	// starts a full period later.
	chartLoop := scheduler.New(scheduler.Options{
		Name:         "chart",
		Interval:     a.Config.Scheduler.ChartUpdateInterval,
		StartupDelay: a.Config.Scheduler.ChartUpdateInterval,
	}, a.Logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return priceLoop.Run(ctx, svc.PriceTick)
	})
	group.Go(func() error {
		return chartLoop.Run(ctx, svc.ChartTick)
	})

	err = group.Wait()
	svc.Persist()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}
	a.Logger.Info().Msg("tracking service stopped")
	return nil
}
