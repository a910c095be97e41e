package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Options{Token: "token", BaseURL: baseURL, Timeout: time.Second}, zerolog.Nop())
}

func TestSendMessageReturnsID(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 123},
		})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).SendMessage(context.Background(), 42, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != 123 {
		t.Fatalf("message id = %d, want 123", id)
	}
	if received["chat_id"] != float64(42) || received["text"] != "hello" {
		t.Fatalf("unexpected payload: %#v", received)
	}
}

func TestEditMessageTextNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: message to edit not found",
		})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).EditMessageText(context.Background(), 42, 123, "text")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("400 should map to ErrNotFound, got %v", err)
	}
}

func TestForbiddenMapsToNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  403,
			"description": "Forbidden: bot was blocked by the user",
		})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteMessage(context.Background(), 42, 123)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("403 should map to ErrNotFound, got %v", err)
	}
}

func TestTransientErrorIsNotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  429,
			"description": "Too Many Requests",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendMessage(context.Background(), 42, "x")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("429 must stay transient, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 429 {
		t.Fatalf("expected APIError 429, got %v", err)
	}
}

func TestSendPhotoMultipart(t *testing.T) {
	photo := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "42" {
			t.Fatalf("chat_id = %q", got)
		}
		if got := r.FormValue("caption"); got != "caption" {
			t.Fatalf("caption = %q", got)
		}
		file, _, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("photo part missing: %v", err)
		}
		defer file.Close()
		buf := make([]byte, len(photo))
		if _, err := file.Read(buf); err != nil {
			t.Fatalf("read photo: %v", err)
		}
		if string(buf) != string(photo) {
			t.Fatalf("photo bytes mismatch")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 55},
		})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).SendPhoto(context.Background(), 42, photo, "caption")
	if err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if id != 55 {
		t.Fatalf("message id = %d, want 55", id)
	}
}

func TestEditMessageMediaAttachesPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		var media map[string]any
		if err := json.Unmarshal([]byte(r.FormValue("media")), &media); err != nil {
			t.Fatalf("media field: %v", err)
		}
		if media["media"] != "attach://photo" || media["type"] != "photo" {
			t.Fatalf("unexpected media payload: %#v", media)
		}
		if _, _, err := r.FormFile("photo"); err != nil {
			t.Fatalf("photo part missing: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).EditMessageMedia(context.Background(), 42, 55, []byte("png"), "caption")
	if err != nil {
		t.Fatalf("EditMessageMedia: %v", err)
	}
}

func TestPinChatMessage(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "pinChatMessage") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).PinChatMessage(context.Background(), 42, 55); err != nil {
		t.Fatalf("PinChatMessage: %v", err)
	}
	if received["disable_notification"] != true {
		t.Fatalf("pin should be silent: %#v", received)
	}
}
