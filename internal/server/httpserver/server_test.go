package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	reg := metric.NewRegistry()
	reg.CountLaunch("ok")

	s := New("127.0.0.1:0", NewRouter(RouterConfig{Metrics: reg.Handler(), Logger: logger.Nop()}))
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "rosiels_") {
		t.Errorf("metrics body has no rosiels_ series")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestServer_ListenBusyPort(t *testing.T) {
	a := New("127.0.0.1:0", http.NotFoundHandler())
	if err := a.Listen(); err != nil {
		t.Fatal(err)
	}
	defer a.listener.Close()

	b := New(a.Addr(), http.NotFoundHandler())
	if err := b.Listen(); err == nil {
		b.listener.Close()
		t.Fatal("Listen() on busy port succeeded")
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthFunc
		wantStatus int
		wantBody   string
	}{
		{"no check", nil, http.StatusOK, "ok"},
		{"healthy", func() error { return nil }, http.StatusOK, "ok"},
		{"unhealthy", func() error { return errors.New("store closed") }, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Health: tt.health, Logger: logger.Nop()})
			rec := doRequest(h, "GET", "/healthz")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
		})
	}
}

func TestRouter_MetricsOptional(t *testing.T) {
	h := NewRouter(RouterConfig{Logger: logger.Nop()})
	if rec := doRequest(h, "GET", "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
