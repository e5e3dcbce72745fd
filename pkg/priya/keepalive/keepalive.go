// Package keepalive runs the small HTTP server that keeps a hosted priya
// process awake: a liveness page, a JSON health endpoint and Prometheus
// metrics. An optional cron job pings a public URL so that free hosting
// tiers do not idle the process.
package keepalive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

// AliveText is the body of GET /.
const AliveText = "Priya is alive"

// Config configures the keep-alive server.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`

	// SelfPingURL is fetched on every SelfPingSchedule tick. Empty disables
	// the job.
	SelfPingURL string `yaml:"self_ping_url"`

	// SelfPingSchedule is a cron spec or descriptor.
	SelfPingSchedule string `yaml:"self_ping_schedule"`

	// PingTimeout bounds one self-ping request.
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Address:          ":8080",
		SelfPingSchedule: "@every 10m",
		PingTimeout:      15 * time.Second,
	}
}

// MaintenanceReporter reports the maintenance flag. *bot.Gate satisfies it.
type MaintenanceReporter interface {
	Maintenance() bool
}

// Server is the keep-alive HTTP server.
type Server struct {
	cfg        Config
	status     MaintenanceReporter
	router     chi.Router
	httpClient *http.Client
	logger     *slog.Logger
	startedAt  time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cron     *cron.Cron
}

// New creates a server. status may be nil.
func New(cfg Config, status MaintenanceReporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.SelfPingSchedule == "" {
		cfg.SelfPingSchedule = def.SelfPingSchedule
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}

	s := &Server{
		cfg:        cfg,
		status:     status,
		httpClient: &http.Client{},
		logger:     logger.With("component", "keepalive"),
		startedAt:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleAlive)
	r.Head("/", s.handleAlive)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listen address, serves in the background and schedules
// the self-ping job when configured.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("keepalive: already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("keepalive: listen %s: %w", s.cfg.Address, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("keepalive server error", "error", err)
		}
	}()

	if s.cfg.SelfPingURL != "" {
		c := cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		)))
		if _, err := c.AddFunc(s.cfg.SelfPingSchedule, func() { _ = s.Ping(ctx) }); err != nil {
			_ = s.server.Close()
			s.server = nil
			s.listener = nil
			return fmt.Errorf("keepalive: invalid self-ping schedule %q: %w", s.cfg.SelfPingSchedule, err)
		}
		c.Start()
		s.cron = c
	}

	s.logger.Info("keepalive server started",
		"address", ln.Addr().String(),
		"self_ping", s.cfg.SelfPingURL != "",
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop ends the self-ping job and shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			s.logger.Warn("self-ping job did not stop in time")
		}
		s.cron = nil
	}
	if s.server == nil {
		return nil
	}
	s.logger.Info("keepalive server stopping")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

// Ping fetches the self-ping URL once.
func (s *Server) Ping(ctx context.Context) error {
	if s.cfg.SelfPingURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.SelfPingURL, nil)
	if err != nil {
		return fmt.Errorf("keepalive: creating ping request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("self-ping failed", "error", err)
		return fmt.Errorf("keepalive: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		s.logger.Warn("self-ping returned error status", "status", resp.StatusCode)
		return fmt.Errorf("keepalive: ping returned %d", resp.StatusCode)
	}
	s.logger.Debug("self-ping ok", "status", resp.StatusCode)
	return nil
}

func (s *Server) handleAlive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, AliveText)
}

// Health is the body of GET /health.
type Health struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Maintenance bool   `json:"maintenance"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startedAt).Round(time.Second).String()
	if uptime == "0s" {
		uptime = "<1s"
	}
	h := Health{Status: "ok", Uptime: uptime}
	if s.status != nil {
		h.Maintenance = s.status.Maintenance()
	}
	if h.Maintenance {
		h.Status = "maintenance"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h)
}
