package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"moexwatch/internal/alert"
	"moexwatch/internal/chart"
	"moexwatch/internal/config"
	"moexwatch/internal/fetcher"
	"moexwatch/internal/reconcile"
	"moexwatch/internal/render"
	"moexwatch/internal/service"
	"moexwatch/internal/state"
	"moexwatch/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) location() (*time.Location, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}
	return loc, nil
}

func (a *App) newMoex(loc *time.Location) *fetcher.Moex {
	return fetcher.NewMoex(fetcher.MoexOptions{
		BaseURL:        a.Config.Moex.BaseURL,
		Board:          a.Config.Moex.Board,
		Security:       a.Config.Moex.Security,
		CandleInterval: a.Config.Moex.CandleInterval,
		Timeout:        a.Config.Moex.RequestTimeout,
		UserAgent:      a.Config.Moex.UserAgent,
		Location:       loc,
	}, a.Logger)
}

func (a *App) newTelegram() *telegram.Client {
	return telegram.NewClient(telegram.Options{
		Token:   a.Config.Telegram.BotToken,
		BaseURL: a.Config.Telegram.APIBase,
		Timeout: a.Config.Telegram.RequestTimeout,
	}, a.Logger)
}

func (a *App) newStore(loc *time.Location) *state.Store {
	return state.NewStore(a.Config.State.Path, loc, a.Logger)
}

func (a *App) newChartRenderer(loc *time.Location) *chart.Renderer {
	return chart.NewRenderer(chart.Options{
		Title:    a.Config.Moex.IndexName,
		Width:    a.Config.Chart.Width,
		Height:   a.Config.Chart.Height,
		Location: loc,
	})
}

func (a *App) newService(loc *time.Location) *service.Service {
	client := a.newTelegram()
	moex := a.newMoex(loc)

	return service.New(
		service.Options{
			ChatIDs:        a.Config.Telegram.ChatIDs,
			Retention:      a.Config.History.Retention,
			BackfillWindow: a.Config.History.BackfillWindow,
			ChartLookback:  a.Config.Chart.Lookback,
			AlertRetention: a.Config.Alerting.DeleteAfter,
		},
		a.newStore(loc),
		moex,
		moex,
		render.New(a.Config.Moex.IndexName, loc, a.Config.Alerting.Window),
		a.newChartRenderer(loc),
		reconcile.New(client, a.Logger),
		alert.NewDetector(a.Config.Alerting.Threshold, a.Config.Alerting.Window),
		client,
		a.Logger,
	)
}

// ExportOptions hold parameters for exporting the persisted history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Window time.Duration
	DryRun bool
}

// SimulateOptions configure the alert drill.
type SimulateOptions struct {
	Diff  float64
	Value float64
}
