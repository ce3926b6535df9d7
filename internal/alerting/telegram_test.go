package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-watch/internal/portfolio"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testNote(status portfolio.ThresholdStatus, total int64) Notification {
	return Notification{
		Status:   status,
		Total:    total,
		Date:     time.Date(2025, 5, 8, 20, 0, 0, 0, time.UTC),
		Band:     portfolio.ThresholdBand{Min: decimal.NewFromInt(80000), Max: decimal.NewFromInt(150000)},
		Currency: "USD",
	}
}

func TestTelegramSendsRenderedAlert(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("123:abc", "-100200", srv.URL+"/", time.Second, testLogger())
	if err := n.Notify(context.Background(), testNote(portfolio.StatusBelow, 75000)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", path)
	}
	if got.ChatID != "-100200" {
		t.Fatalf("unexpected chat id %q", got.ChatID)
	}
	if !strings.Contains(got.Text, "$75,000.00") || !strings.Contains(got.Text, "BELOW") {
		t.Fatalf("text should carry status and formatted total, got %q", got.Text)
	}
}

func TestTelegramRejectedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("123:abc", "nope", srv.URL, time.Second, testLogger())
	err := n.Notify(context.Background(), testNote(portfolio.StatusAbove, 160000))
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("ok=false should surface the description, got %v", err)
	}
}

func TestTelegramHTTPStatusKeepsTokenOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("secret-token", "chat", srv.URL, time.Second, testLogger())
	err := n.Notify(context.Background(), testNote(portfolio.StatusAbove, 160000))
	if err == nil {
		t.Fatal("401 should fail")
	}
	if !strings.Contains(err.Error(), "Unauthorized") || strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("unexpected error %v", err)
	}

	closed := NewTelegramNotifier("secret-token", "chat", "http://127.0.0.1:1", 200*time.Millisecond, testLogger())
	err = closed.Notify(context.Background(), testNote(portfolio.StatusAbove, 160000))
	if err == nil || strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("transport errors must not leak the token, got %v", err)
	}
}
