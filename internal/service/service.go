package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"moexwatch/internal/alert"
	"moexwatch/internal/fetcher"
	"moexwatch/internal/history"
	"moexwatch/internal/reconcile"
	"moexwatch/internal/render"
	"moexwatch/internal/state"
)

// Messenger is the slice of the delivery channel used outside the
// reconciler: one-shot alert messages, their deferred deletion, and
// pinning of newly created live messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	PinChatMessage(ctx context.Context, chatID, messageID int64) error
}

// ChartRenderer draws a point series (with optional day summary) as PNG.
type ChartRenderer interface {
	Render(points []history.Point, summary *fetcher.DaySummary) ([]byte, error)
}

// Options tune the tracking engine.
type Options struct {
	ChatIDs        []int64
	Retention      time.Duration
	BackfillWindow time.Duration
	ChartLookback  time.Duration
	AlertRetention time.Duration
}

// Service owns the tracker state and drives sampling, reconciliation,
// and alerting. All mutations of the snapshot (history and message
// handles) and all reconciler calls happen under mu; the alert detector
// keeps its own narrower lock.
type Service struct {
	opts      Options
	logger    zerolog.Logger
	store     *state.Store
	quotes    fetcher.QuoteFetcher
	candles   fetcher.CandleFetcher
	renderer  *render.Renderer
	charts    ChartRenderer
	rec       *reconcile.Reconciler
	detector  *alert.Detector
	messenger Messenger

	mu   sync.Mutex
	snap *state.Snapshot
}

// New constructs the tracking engine. The snapshot is loaded once here
// and owned exclusively by the service afterwards.
func New(
	opts Options,
	store *state.Store,
	quotes fetcher.QuoteFetcher,
	candles fetcher.CandleFetcher,
	renderer *render.Renderer,
	charts ChartRenderer,
	rec *reconcile.Reconciler,
	detector *alert.Detector,
	messenger Messenger,
	logger zerolog.Logger,
) *Service {
	return &Service{
		opts:      opts,
		logger:    logger.With().Str("component", "service").Logger(),
		store:     store,
		quotes:    quotes,
		candles:   candles,
		renderer:  renderer,
		charts:    charts,
		rec:       rec,
		detector:  detector,
		messenger: messenger,
		snap:      store.Load(),
	}
}

// Bootstrap prepares state and live messages on startup: prune or
// backfill history, place or restore the placeholder artifacts, pin
// newly created messages, then run one immediate text+chart pass.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, chatID := range s.opts.ChatIDs {
		s.snap.EnsureChat(chatID)
	}

	s.snap.History.Prune(now, s.opts.Retention)
	if s.snap.History.Len() > 0 {
		s.logger.Info().Int("points", s.snap.History.Len()).Msg("loaded history from state file")
	} else {
		s.backfillLocked(ctx, now)
	}
	s.persistLocked()

	s.placePlaceholdersLocked(ctx, now)

	if last, ok := s.snap.History.LastPoint(); ok {
		s.reconcileTextLocked(ctx, s.renderer.PriceMessage(s.snap.History.Points(), last.Timestamp, last.Value))
	}
	s.reconcileChartLocked(ctx, now, nil)
	return nil
}

func (s *Service) backfillLocked(ctx context.Context, now time.Time) {
	start := now.Add(-s.opts.BackfillWindow)
	candles, err := s.candles.FetchCandles(ctx, start, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch initial candle history")
		return
	}

	for _, c := range candles {
		point, err := history.NewPoint(c.Timestamp, c.Close)
		if err != nil {
			s.logger.Warn().Err(err).Msg("skipping invalid candle")
			continue
		}
		s.snap.History.Append(point)
	}
	s.logger.Info().Int("candles", len(candles)).Msg("seeded history from candles")
}

// placePlaceholdersLocked proactively overwrites any pre-existing live
// messages with placeholders before the first real value is known, and
// pins the ones it had to create.
func (s *Service) placePlaceholdersLocked(ctx context.Context, now time.Time) {
	chartPNG, err := s.charts.Render(s.placeholderPoints(now), nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render placeholder chart")
	}

	changed := false
	for _, chatID := range s.snap.ChatIDs() {
		refs := s.snap.EnsureChat(chatID)

		hadText := refs.PriceMessageID != 0
		if s.rec.EnsureText(ctx, chatID, refs, render.PricePlaceholder) {
			changed = true
			if !hadText && refs.PriceMessageID != 0 {
				s.pin(ctx, chatID, refs.PriceMessageID)
			}
		}

		if chartPNG == nil {
			continue
		}
		hadChart := refs.ChartMessageID != 0
		if s.rec.EnsureChart(ctx, chatID, refs, chartPNG, render.ChartPlaceholderCaption) {
			changed = true
			if !hadChart && refs.ChartMessageID != 0 {
				s.pin(ctx, chatID, refs.ChartMessageID)
			}
		}
	}
	if changed {
		s.persistLocked()
	}
}

func (s *Service) pin(ctx context.Context, chatID, messageID int64) {
	if err := s.messenger.PinChatMessage(ctx, chatID, messageID); err != nil {
		s.logger.Warn().Err(err).Int64("chat", chatID).Msg("failed to pin message")
	}
}

// placeholderPoints picks the trailing five minutes of history, or a
// flat synthetic pair when there is nothing to show yet.
func (s *Service) placeholderPoints(now time.Time) []history.Point {
	points := s.snap.History.Points()
	if len(points) == 0 {
		loc := s.snap.History.Location()
		return []history.Point{
			{Timestamp: now.In(loc).Add(-5 * time.Minute), Value: 0},
			{Timestamp: now.In(loc), Value: 0},
		}
	}

	last := points[len(points)-1]
	start := last.Timestamp.Add(-5 * time.Minute)
	recent := make([]history.Point, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(start) {
			recent = append(recent, p)
		}
	}
	if len(recent) < 2 {
		return []history.Point{
			{Timestamp: last.Timestamp.Add(-5 * time.Minute), Value: last.Value},
			last,
		}
	}
	return recent
}

// PriceTick is the fast cycle: fetch the current value, fold it into
// history, persist, reconcile the text artifact, and evaluate the alert
// window. A fetch failure abandons the tick; nothing is mutated.
func (s *Service) PriceTick(ctx context.Context, _ time.Time) error {
	ts, value, err := s.quotes.FetchLastValue(ctx)
	if err != nil {
		return fmt.Errorf("fetch last value: %w", err)
	}

	point, err := history.NewPoint(ts, value)
	if err != nil {
		return fmt.Errorf("reject fetched sample: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.History.Append(point)
	s.snap.History.Prune(time.Now(), s.opts.Retention)
	s.persistLocked()

	text := s.renderer.PriceMessage(s.snap.History.Points(), ts, value)
	s.reconcileTextLocked(ctx, text)

	if ev, fired := s.detector.Observe(ts, value); fired {
		s.broadcastAlertLocked(ctx, ev)
	}
	return nil
}

func (s *Service) reconcileTextLocked(ctx context.Context, text string) {
	changed := false
	for _, chatID := range s.snap.ChatIDs() {
		if s.rec.EnsureText(ctx, chatID, s.snap.EnsureChat(chatID), text) {
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}
}

// ChartTick is the slow cycle: render the trailing window and reconcile
// the image artifact. The day summary is best effort; without it the
// chart simply loses its annotation.
func (s *Service) ChartTick(ctx context.Context, now time.Time) error {
	var summary *fetcher.DaySummary
	if day, err := s.quotes.FetchDaySummary(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch day summary for chart")
	} else {
		summary = &day
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileChartLocked(ctx, now, summary)
	return nil
}

func (s *Service) reconcileChartLocked(ctx context.Context, now time.Time, summary *fetcher.DaySummary) {
	points := s.snap.History.PointsSince(now.Add(-s.opts.ChartLookback))
	if len(points) == 0 {
		all := s.snap.History.Points()
		if len(all) == 0 {
			return
		}
		if len(all) > 2 {
			all = all[len(all)-2:]
		}
		points = all
	}

	png, err := s.charts.Render(points, summary)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render chart")
		return
	}
	caption := s.renderer.ChartCaption(points)

	changed := false
	for _, chatID := range s.snap.ChatIDs() {
		if s.rec.EnsureChart(ctx, chatID, s.snap.EnsureChat(chatID), png, caption) {
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}
}

// broadcastAlertLocked sends a one-shot alert to every chat and
// schedules its deletion. One chat's failure never blocks the others.
func (s *Service) broadcastAlertLocked(ctx context.Context, ev alert.Event) {
	text := s.renderer.AlertMessage(ev.Diff, ev.Value)
	for _, chatID := range s.snap.ChatIDs() {
		messageID, err := s.messenger.SendMessage(ctx, chatID, text)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat", chatID).Msg("failed to send alert message")
			continue
		}
		s.logger.Info().Int64("chat", chatID).Str("direction", ev.Direction).
			Float64("diff", ev.Diff).Msg("alert sent")
		go s.deleteLater(ctx, chatID, messageID)
	}
}

// deleteLater removes an alert message after its retention period.
// Fire and forget: on shutdown the deletion is simply abandoned.
func (s *Service) deleteLater(ctx context.Context, chatID, messageID int64) {
	timer := time.NewTimer(s.opts.AlertRetention)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := s.messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		s.logger.Warn().Err(err).Int64("chat", chatID).Int64("message", messageID).
			Msg("failed to delete alert message")
	}
}

func (s *Service) persistLocked() {
	if err := s.store.Save(s.snap); err != nil {
		s.logger.Error().Err(err).Msg("failed to save state; in-memory state stays authoritative")
	}
}

// Persist writes the current snapshot, used for the final save on
// shutdown.
func (s *Service) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

// Snapshot exposes the current state under the main lock for read-only
// inspection by CLI commands.
func (s *Service) Snapshot(inspect func(*state.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inspect(s.snap)
}
