package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sundayezeilo/tasklinks/internal/config"
	"github.com/sundayezeilo/tasklinks/internal/store/storetest"
)

type pingRoutes struct{}

func (pingRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong "+r.PathValue("name"))
	})
}

func testConfig(metrics bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
		},
		App: config.AppConfig{Environment: "test", LogLevel: "error"},
		Observability: config.ObservabilityConfig{
			ServiceName:    "shortener",
			ServiceVersion: "v1.2.3",
			MetricsEnabled: metrics,
		},
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		ping       func(context.Context) error
		wantStatus int
		wantBody   string
	}{
		{"no ping", nil, http.StatusOK, "ok"},
		{"store reachable", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"store down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(testConfig(false), storetest.Logger(), Options{Ping: tt.ping})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tt.wantBody || body["service"] != "shortener" || body["version"] != "v1.2.3" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestRoutesAndMiddleware(t *testing.T) {
	srv := New(testConfig(false), storetest.Logger(), Options{}, pingRoutes{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/abc", nil))

	if rec.Body.String() != "pong abc" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		srv := New(testConfig(true), storetest.Logger(), Options{Registry: prometheus.NewRegistry()}, pingRoutes{})
		h := srv.Handler()

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping/x", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="GET /ping/{name}",status="200"} 1`) {
			t.Errorf("metrics output missing request counter:\n%s", rec.Body.String())
		}
	})

	t.Run("disabled by config", func(t *testing.T) {
		srv := New(testConfig(false), storetest.Logger(), Options{Registry: prometheus.NewRegistry()})

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	srv := New(testConfig(false), storetest.Logger(), Options{}, pingRoutes{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping/live")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong live" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestShutdown_BeforeStart(t *testing.T) {
	srv := New(testConfig(false), storetest.Logger(), Options{})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
