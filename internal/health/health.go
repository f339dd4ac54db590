// Package health exposes the liveness HTTP endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

// Snapshot is the /health response body.
type Snapshot struct {
	Status           string `json:"status"`
	ChannelConnected bool   `json:"channelConnected"`
	CampaignCount    int    `json:"campaignCount"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	Timestamp        string `json:"timestamp"`
}

// Server is a small HTTP listener for keep-alive pings and health probes.
type Server struct {
	addr  string
	probe func() Snapshot
	log   logx.Logger

	srv *http.Server
	ln  net.Listener
}

// New builds a Server. probe is called on every /health request.
func New(cfg config.HealthConfig, probe func() Snapshot, log logx.Logger) *Server {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = ":8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{addr: addr, probe: probe, log: log}
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("health server error", logx.String("addr", s.addr), logx.Err(err))
		}
	}()
	s.log.Info("health endpoint up", logx.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
	}
	s.srv = nil
	s.ln = nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("blastbot is running\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := Snapshot{Status: "ok", Timestamp: time.Now().Format(time.RFC3339)}
	if s.probe != nil {
		snap = s.probe()
	}
	code := http.StatusOK
	if !snap.ChannelConnected {
		snap.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(snap)
}
