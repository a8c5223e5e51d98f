package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestWebhookRetriesThenDelivers(t *testing.T) {
	var calls atomic.Int32
	var got Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Arena-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, WithWebhookRetry(3), WithWebhookHeader("X-Arena-Token", "secret"))
	if err := s.Write(context.Background(), FromGame(sampleResult())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if got.Kind != KindGame || got.Game == nil || got.Game.GameID != "game-1" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, WithWebhookRetry(3))
	if err := s.Write(context.Background(), FromGame(sampleResult())); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}
