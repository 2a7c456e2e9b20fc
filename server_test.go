package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"i4.energy/across/bg95/modem"
)

func newTestServer(t *testing.T) (*Server, *modem.TestTransport) {
	t.Helper()
	transport := modem.NewTestTransport()
	config, err := modem.NewConfigBuilder().
		WithDialer(modem.TestDialer{Transport: transport}).
		WithChunkInterval(5 * time.Millisecond).
		WithSkipInit(true).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	return &Server{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Modem:  m,
	}, transport
}

func TestServer(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT\r\n", "\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("Signal", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+CSQ\r\n", "\r\n+CSQ: 15,99\r\n\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signal", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			RSSI *int `json:"rssi"`
			BER  *int `json:"ber"`
			DBm  *int `json:"dbm"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.RSSI == nil || *resp.RSSI != 15 || resp.DBm == nil || *resp.DBm != -83 {
			t.Errorf("unexpected signal response: %+v", resp)
		}
		if resp.BER != nil {
			t.Errorf("expected unknown BER to be omitted, got %d", *resp.BER)
		}
	})

	t.Run("Signal with out of range RSSI", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+CSQ\r\n", "\r\n+CSQ: 50,3\r\n\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signal", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if strings.Contains(rec.Body.String(), "rssi") || !strings.Contains(rec.Body.String(), `"ber":3`) {
			t.Errorf("expected rssi omitted and ber reported, got %s", rec.Body)
		}
	})

	t.Run("SIM rejected", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+CPIN?\r\n", "\r\n+CME ERROR: 10\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sim", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Operator", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+COPS?\r\n", "\r\n+COPS: 0\r\n\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operator", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), `"mode":"automatic"`) {
			t.Errorf("unexpected body %s", rec.Body)
		}
		if strings.Contains(rec.Body.String(), "name") {
			t.Errorf("expected absent name to be omitted: %s", rec.Body)
		}
	})

	t.Run("Send SMS", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply(`AT+CMGS="+1234567890"`+"\r\n", "\r\n> ")
		transport.Reply("Hello World\x1a", "\r\n+CMGS: 42\r\n\r\nOK\r\n")

		body := strings.NewReader(`{"to":"+1234567890","message":"Hello World"}`)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sms", body))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), `"reference":42`) {
			t.Errorf("unexpected body %s", rec.Body)
		}
	})

	t.Run("Send SMS with missing fields", func(t *testing.T) {
		s, transport := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(`{"to":"+1"}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(transport.Writes()) != 0 {
			t.Errorf("expected nothing written, got %q", transport.Writes())
		}
	})

	t.Run("Method not allowed", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sms", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Rate limited", func(t *testing.T) {
		s, transport := newTestServer(t)
		s.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		transport.Reply("AT\r\n", "\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected first request to pass, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
	})
}
