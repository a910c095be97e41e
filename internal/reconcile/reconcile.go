package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"moexwatch/internal/state"
	"moexwatch/internal/telegram"
)

// Messenger is the slice of the delivery channel the reconciler drives.
// Implementations report a permanently inaccessible message by returning
// an error matching telegram.ErrNotFound; any other error is transient.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) (int64, error)
	EditMessageMedia(ctx context.Context, chatID, messageID int64, photo []byte, caption string) error
}

// Reconciler makes remote artifacts match desired content with minimal
// calls: create when no handle is recorded, skip when the text already
// matches the last delivered one, edit otherwise, and re-create once when
// the recorded handle turns out to be stale.
type Reconciler struct {
	messenger Messenger
	logger    zerolog.Logger

	// lastText is advisory: a stale read costs one redundant edit, never
	// a correctness violation, so it has its own small lock instead of
	// the main state lock. It is rebuilt empty on restart.
	mu       sync.Mutex
	lastText map[int64]string
}

// New constructs a Reconciler over the given channel.
func New(messenger Messenger, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		messenger: messenger,
		logger:    logger.With().Str("component", "reconciler").Logger(),
		lastText:  make(map[int64]string),
	}
}

// EnsureText reconciles the chat's live text message to the desired text.
// It reports whether the stored handle was mutated, so the caller knows
// to persist the snapshot.
func (r *Reconciler) EnsureText(ctx context.Context, chatID int64, refs *state.ChatRefs, text string) bool {
	if refs.PriceMessageID == 0 {
		return r.createText(ctx, chatID, refs, text)
	}

	if r.cachedText(chatID) == text {
		return false
	}

	err := r.messenger.EditMessageText(ctx, chatID, refs.PriceMessageID, text)
	if err == nil {
		r.rememberText(chatID, text)
		return false
	}

	if !errors.Is(err, telegram.ErrNotFound) {
		r.logger.Error().Err(err).Int64("chat", chatID).Msg("failed to edit text message")
		return false
	}

	r.logger.Warn().Int64("chat", chatID).Int64("message", refs.PriceMessageID).
		Msg("stored text message is not accessible, creating a new one")
	refs.PriceMessageID = 0
	r.createText(ctx, chatID, refs, text)
	return true
}

func (r *Reconciler) createText(ctx context.Context, chatID int64, refs *state.ChatRefs, text string) bool {
	messageID, err := r.messenger.SendMessage(ctx, chatID, text)
	if err != nil {
		r.logger.Error().Err(err).Int64("chat", chatID).Msg("failed to send text message")
		return false
	}
	refs.PriceMessageID = messageID
	r.rememberText(chatID, text)
	return true
}

// EnsureChart reconciles the chat's live photo message to the desired
// image and caption. Images have no cheap equality check, so every call
// re-sends; the slow cadence keeps that affordable.
func (r *Reconciler) EnsureChart(ctx context.Context, chatID int64, refs *state.ChatRefs, photo []byte, caption string) bool {
	if refs.ChartMessageID == 0 {
		return r.createChart(ctx, chatID, refs, photo, caption)
	}

	err := r.messenger.EditMessageMedia(ctx, chatID, refs.ChartMessageID, photo, caption)
	if err == nil {
		return false
	}

	if !errors.Is(err, telegram.ErrNotFound) {
		r.logger.Error().Err(err).Int64("chat", chatID).Msg("failed to edit chart message")
		return false
	}

	r.logger.Warn().Int64("chat", chatID).Int64("message", refs.ChartMessageID).
		Msg("stored chart message is not accessible, creating a new one")
	refs.ChartMessageID = 0
	r.createChart(ctx, chatID, refs, photo, caption)
	return true
}

func (r *Reconciler) createChart(ctx context.Context, chatID int64, refs *state.ChatRefs, photo []byte, caption string) bool {
	messageID, err := r.messenger.SendPhoto(ctx, chatID, photo, caption)
	if err != nil {
		r.logger.Error().Err(err).Int64("chat", chatID).Msg("failed to send chart message")
		return false
	}
	refs.ChartMessageID = messageID
	return true
}

func (r *Reconciler) cachedText(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastText[chatID]
}

func (r *Reconciler) rememberText(chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastText[chatID] = text
}
