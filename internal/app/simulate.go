package app

import (
	"context"
	"errors"

	"moexwatch/internal/render"
)

// SimulateAlert sends a rendered move alert to every configured chat.
// A drill for the delivery path; the message is not scheduled for
// deletion since the process exits right away.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.Diff == 0 {
		return errors.New("--diff must be non-zero")
	}
	if err := a.Config.ValidateDelivery(); err != nil {
		return err
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	text := render.New(a.Config.Moex.IndexName, loc, a.Config.Alerting.Window).
		AlertMessage(opts.Diff, opts.Value)
	client := a.newTelegram()

	failed := 0
	for _, chatID := range a.Config.Telegram.ChatIDs {
		messageID, err := client.SendMessage(ctx, chatID, text)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Int64("chat", chatID).Msg("failed to deliver simulated alert")
			continue
		}
		a.Logger.Info().Int64("chat", chatID).Int64("message", messageID).Msg("simulated alert delivered")
	}
	if failed > 0 {
		return errors.New("simulated alert failed for some chats, check the logs")
	}
	return nil
}
