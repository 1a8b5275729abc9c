package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner is the scheduler view the status surface reads. Read-only: the
// API never mutates scheduler state.
type Runner interface {
	Healthy() bool
	Status() []domain.JobStatus
}

// Server exposes the healthcheck/status/metrics HTTP surface
type Server struct {
	runner  Runner
	gateway repo.Gateway
	log     *slog.Logger
	server  *http.Server
	port    int
}

// NewServer creates the HTTP API server. The underlying http.Server is
// built here so Stop is safe no matter when it races with Start.
func NewServer(runner Runner, gateway repo.Gateway, port int, log *slog.Logger) *Server {
	s := &Server{
		runner:  runner,
		gateway: gateway,
		log:     log.With("component", "api"),
		port:    port,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", s.handleHealthcheck)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "port", s.port)
	return s.server.ListenAndServe()
}

// Stop shuts the HTTP server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// healthcheckResponse is the /healthcheck payload
type healthcheckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if s.runner.Healthy() {
		writeJSON(w, http.StatusOK, healthcheckResponse{
			Status:  "ok",
			Message: "bot is running and ready",
		})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, healthcheckResponse{
		Status:  "not_ready",
		Message: "bot is not ready",
	})
}

// statusResponse is the /status payload
type statusResponse struct {
	Healthy bool        `json:"healthy"`
	Gateway gatewayInfo `json:"gateway"`
	Jobs    []jobInfo   `json:"jobs"`
}

type gatewayInfo struct {
	Alive          bool    `json:"alive"`
	LatencySeconds float64 `json:"latency_seconds"`
	User           string  `json:"user"`
}

type jobInfo struct {
	Name      string `json:"name"`
	Interval  string `json:"interval"`
	State     string `json:"state"`
	LastRun   string `json:"last_run"`
	LastError string `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobs := s.runner.Status()
	out := statusResponse{
		Healthy: s.runner.Healthy(),
		Gateway: gatewayInfo{
			Alive:          s.gateway.Alive(),
			LatencySeconds: s.gateway.Latency().Seconds(),
			User:           s.gateway.BotUser(),
		},
		Jobs: make([]jobInfo, 0, len(jobs)),
	}
	for _, j := range jobs {
		info := jobInfo{
			Name:      j.Name,
			Interval:  j.Interval.String(),
			State:     string(j.State),
			LastError: j.LastError,
		}
		if !j.LastRun.IsZero() {
			info.LastRun = j.LastRun.UTC().Format(time.RFC3339)
		}
		out.Jobs = append(out.Jobs, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
