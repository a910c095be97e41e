package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound marks a permanent delivery failure: the referenced message
// no longer exists or the bot lost access to the chat. Callers use it to
// drive the self-heal path instead of retrying the same handle.
var ErrNotFound = errors.New("telegram: message not accessible")

// APIError carries a Bot API failure response.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram api error (%d): %s", e.Code, e.Description)
	}
	return fmt.Sprintf("telegram api error (%d)", e.Code)
}

// Is maps permanent API failures onto ErrNotFound. 400 covers deleted or
// foreign messages, 403 covers a blocked bot or revoked chat access.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.Code == http.StatusBadRequest || e.Code == http.StatusForbidden)
}

// Options parameterise the Bot API client.
type Options struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Telegram Bot API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a Bot API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "telegram").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type messageResult struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage creates a text message and returns its id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	var msg messageResult
	if err := c.postJSON(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText rewrites the text of an existing message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return c.postJSON(ctx, "editMessageText", payload, nil)
}

// SendPhoto creates a photo message and returns its id.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) (int64, error) {
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"caption": caption,
	}
	var msg messageResult
	if err := c.postMultipart(ctx, "sendPhoto", fields, "photo", photo, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageMedia replaces the photo and caption of an existing message.
func (c *Client) EditMessageMedia(ctx context.Context, chatID, messageID int64, photo []byte, caption string) error {
	media, err := json.Marshal(map[string]any{
		"type":    "photo",
		"media":   "attach://photo",
		"caption": caption,
	})
	if err != nil {
		return fmt.Errorf("marshal media payload: %w", err)
	}

	fields := map[string]string{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.FormatInt(messageID, 10),
		"media":      string(media),
	}
	return c.postMultipart(ctx, "editMessageMedia", fields, "photo", photo, nil)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	return c.postJSON(ctx, "deleteMessage", payload, nil)
}

// PinChatMessage pins a message without a notification.
func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}
	return c.postJSON(ctx, "pinChatMessage", payload, nil)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.opts.Token, method)
}

func (c *Client) postJSON(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, out)
}

func (c *Client) postMultipart(ctx context.Context, method string, fields map[string]string, fileField string, file []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write %s field: %w", key, err)
		}
	}

	part, err := writer.CreateFormFile(fileField, "chart.png")
	if err != nil {
		return fmt.Errorf("create %s part: %w", fileField, err)
	}
	if _, err := part.Write(file); err != nil {
		return fmt.Errorf("write %s part: %w", fileField, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalise multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &buf)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: envelope.Description}
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
