package app

import (
	"context"
	"errors"
	"time"

	"moexwatch/internal/history"
)

// Backfill seeds the state file from MOEX candles without touching
// Telegram. Useful before the first run or after the state file was lost.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.Window <= 0 {
		opts.Window = a.Config.History.BackfillWindow
	}
	if opts.Window <= 0 {
		return errors.New("backfill window must be positive")
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	now := time.Now()
	candles, err := a.newMoex(loc).FetchCandles(ctx, now.Add(-opts.Window), now)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		a.Logger.Info().Msg("no candles in the backfill window")
		return nil
	}

	store := a.newStore(loc)
	snap := store.Load()
	before := snap.History.Len()

	appended := 0
	for _, c := range candles {
		point, err := history.NewPoint(c.Timestamp, c.Close)
		if err != nil {
			a.Logger.Warn().Err(err).Time("ts", c.Timestamp).Msg("skipping invalid candle")
			continue
		}
		snap.History.Append(point)
		appended++
	}
	snap.History.Prune(now, a.Config.History.Retention)

	a.Logger.Info().
		Int("candles", len(candles)).
		Int("appended", appended).
		Int("before", before).
		Int("after", snap.History.Len()).
		Msg("backfill computed")

	if opts.DryRun {
		a.Logger.Warn().Msg("dry-run: state file left untouched")
		return nil
	}
	return store.Save(snap)
}
