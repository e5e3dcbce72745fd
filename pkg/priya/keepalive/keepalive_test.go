package keepalive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type flag struct{ on atomic.Bool }

func (f *flag) Maintenance() bool { return f.on.Load() }

func TestAlive(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != AliveText {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	f := &flag{}
	srv := httptest.NewServer(New(Config{}, f, nil).Handler())
	defer srv.Close()

	get := func() Health {
		t.Helper()
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var h Health
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return h
	}

	if h := get(); h.Status != "ok" || h.Maintenance || h.Uptime == "" {
		t.Fatalf("health = %+v", h)
	}
	f.on.Store(true)
	if h := get(); h.Status != "maintenance" || !h.Maintenance {
		t.Fatalf("health in maintenance = %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("GET /metrics = %d, body does not look like Prometheus output", resp.StatusCode)
	}
}

func TestPing(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer target.Close()

	ok := New(Config{SelfPingURL: target.URL + "/"}, nil, nil)
	if err := ok.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	down := New(Config{SelfPingURL: target.URL + "/down"}, nil, nil)
	if err := down.Ping(context.Background()); err == nil {
		t.Fatal("expected error for 502")
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", hits.Load())
	}

	if err := New(Config{}, nil, nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping without URL: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Address: "127.0.0.1:0", SelfPingURL: "http://127.0.0.1:1/"}, nil, nil)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	resp, err := http.Get("http://" + s.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Addr() != "" {
		t.Fatal("address should be cleared after Stop")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(Config{Address: "127.0.0.1:0", SelfPingURL: "http://example.com", SelfPingSchedule: "not a schedule"}, nil, nil)
	if err := s.Start(context.Background()); err == nil {
		_ = s.Stop(context.Background())
		t.Fatal("expected schedule error")
	}
}
