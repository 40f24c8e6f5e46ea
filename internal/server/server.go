// Package server implements the submission intake HTTP server. It accepts
// zip archive uploads, runs them through the scan engine, persists the
// resulting verdict, and serves verdict lookups plus health, metrics, and
// stats endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hivefoundry/agentvet/internal/audit"
	"github.com/hivefoundry/agentvet/internal/config"
	"github.com/hivefoundry/agentvet/internal/engine"
	"github.com/hivefoundry/agentvet/internal/metrics"
	"github.com/hivefoundry/agentvet/internal/risk"
	"github.com/hivefoundry/agentvet/internal/store"
	"golang.org/x/time/rate"
)

// Version is set at build time via ldflags.
var Version = "0.1.0-dev"

// SubmissionResponse is the JSON response returned for an accepted upload.
type SubmissionResponse struct {
	ID        string `json:"id"`
	Archive   string `json:"archive"`
	RiskLevel string `json:"risk_level"`
	RiskScore int    `json:"risk_score"`
	Safe      bool   `json:"safe"`
	Score     int    `json:"score"`
	Category  string `json:"category"`
	Report    string `json:"report,omitempty"`
	Error     string `json:"error,omitempty"`
	Rejected  bool   `json:"rejected"`
}

// Server is the submission intake HTTP server.
type Server struct {
	cfgPtr    atomic.Pointer[config.Config]
	engPtr    atomic.Pointer[engine.Engine]
	store     *store.Store
	logger    *audit.Logger
	metrics   *metrics.Metrics
	server    *http.Server
	startTime time.Time
	reloadMu  sync.Mutex // serializes Reload calls

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a submission server from config. The store may be nil, in
// which case verdicts are returned but not persisted.
func New(cfg *config.Config, eng *engine.Engine, st *store.Store, logger *audit.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		store:     st,
		logger:    logger,
		metrics:   m,
		startTime: time.Now(),
		limiters:  make(map[string]*rate.Limiter),
	}
	s.cfgPtr.Store(cfg)
	s.engPtr.Store(eng)
	return s
}

// Reload atomically swaps the config and engine for hot-reload support.
//
// Note: the server listen address and upload size limit are read at
// construction or per-request from the swapped config; existing per-client
// rate limiters keep their original rates until evicted by restart.
func (s *Server) Reload(cfg *config.Config, eng *engine.Engine) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.cfgPtr.Store(cfg)
	s.engPtr.Store(eng)
}

// clientIP extracts the client IP with the port stripped.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

// limiterFor returns the per-client rate limiter, creating it on first use.
func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[ip]
	if !ok {
		cfg := s.cfgPtr.Load()
		perMinute := cfg.Server.RatePerMinute
		if perMinute <= 0 {
			perMinute = 10
		}
		burst := cfg.Server.RateBurst
		if burst <= 0 {
			burst = 5
		}
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
		s.limiters[ip] = lim
	}
	return lim
}

// buildHandler wires the route mux. Exposed to tests via Handler().
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/submissions", s.handleSubmit)
	mux.HandleFunc("GET /api/submissions", s.handleList)
	mux.HandleFunc("GET /api/submissions/{id}", s.handleGet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.PrometheusHandler())
	mux.HandleFunc("GET /stats", s.metrics.StatsHandler())
	return mux
}

// Handler returns the fully wired HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.buildHandler()
}

// Start starts the intake HTTP server. It blocks until the context is
// cancelled or the server encounters a fatal error.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfgPtr.Load()

	s.server = &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: s.buildHandler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second, // Slowloris protection
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on context cancellation. The done channel ensures
	// this goroutine exits if ListenAndServe fails immediately.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				s.logger.LogScanError(cfg.Server.Listen, err)
			}
		case <-done:
		}
	}()

	// Warn if the listen address exposes the intake API to the network
	if host, _, splitErr := net.SplitHostPort(cfg.Server.Listen); splitErr == nil {
		ip := net.ParseIP(host)
		if host == "" || host == "0.0.0.0" || host == "::" || (ip != nil && !ip.IsLoopback()) {
			s.logger.LogListenExposed(cfg.Server.Listen)
		}
	}

	s.logger.LogStartup(cfg.Server.Listen)

	err := s.server.ListenAndServe()
	close(done) // unblock shutdown goroutine if server failed immediately
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleSubmit accepts a multipart zip upload, scans it, and returns the
// verdict. Submissions classified critical are rejected with 422.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfgPtr.Load()
	ip := clientIP(r)
	if !s.limiterFor(ip).Allow() {
		s.logger.LogUploadRefused("", "rate limit exceeded", ip)
		writeJSON(w, http.StatusTooManyRequests, SubmissionResponse{
			Error: "rate limit exceeded, retry later",
		})
		return
	}

	maxBytes := int64(cfg.Server.MaxUploadMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("archive")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.LogUploadRefused("", fmt.Sprintf("upload exceeds %d MB", cfg.Server.MaxUploadMB), ip)
			writeJSON(w, http.StatusRequestEntityTooLarge, SubmissionResponse{
				Error: fmt.Sprintf("upload exceeds %d MB limit", cfg.Server.MaxUploadMB),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, SubmissionResponse{
			Error: "missing 'archive' form file",
		})
		return
	}
	defer file.Close() //nolint:errcheck // read-only upload handle

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		s.logger.LogUploadRefused(name, "not a .zip file", ip)
		writeJSON(w, http.StatusBadRequest, SubmissionResponse{
			Archive: name,
			Error:   "only .zip archives are accepted",
		})
		return
	}

	// Spool the upload to a temp file so the zip reader can seek.
	tmp, err := os.CreateTemp("", "agentvet-upload-*.zip")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, SubmissionResponse{
			Archive: name,
			Error:   fmt.Sprintf("spooling upload: %v", err),
		})
		return
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close() //nolint:errcheck,gosec // best-effort cleanup
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.LogUploadRefused(name, fmt.Sprintf("upload exceeds %d MB", cfg.Server.MaxUploadMB), ip)
			writeJSON(w, http.StatusRequestEntityTooLarge, SubmissionResponse{
				Archive: name,
				Error:   fmt.Sprintf("upload exceeds %d MB limit", cfg.Server.MaxUploadMB),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, SubmissionResponse{
			Archive: name,
			Error:   fmt.Sprintf("spooling upload: %v", err),
		})
		return
	}
	if err := tmp.Close(); err != nil {
		writeJSON(w, http.StatusInternalServerError, SubmissionResponse{
			Archive: name,
			Error:   fmt.Sprintf("spooling upload: %v", err),
		})
		return
	}

	start := time.Now()
	s.metrics.IncrActiveScans()
	scan, scored, err := s.engPtr.Load().Scan(r.Context(), tmpName)
	s.metrics.DecrActiveScans()
	if err != nil {
		s.metrics.RecordScan(string(risk.LevelError), 0, 0, time.Since(start))
		writeJSON(w, http.StatusUnprocessableEntity, SubmissionResponse{
			Archive: name,
			Error:   fmt.Sprintf("scanning archive: %v", err),
		})
		return
	}

	id := uuid.NewString()
	resp := SubmissionResponse{
		ID:        id,
		Archive:   name,
		RiskLevel: string(scan.Summary.RiskLevel),
		RiskScore: scan.Summary.RiskScore,
		Safe:      scan.Summary.Safe,
		Rejected:  scan.Summary.RiskLevel == risk.LevelCritical,
	}
	if scored != nil {
		resp.Score = scored.Score
		resp.Category = scored.Category
	}
	s.metrics.RecordScan(resp.RiskLevel, scan.FileCount, resp.Score, time.Since(start))
	for _, f := range scan.Findings {
		s.metrics.RecordFinding(string(f.Severity), f.Category)
	}

	if s.store != nil {
		v := store.Verdict{
			ID:           id,
			Archive:      name,
			RiskLevel:    resp.RiskLevel,
			RiskScore:    resp.RiskScore,
			FindingCount: len(scan.Findings),
			Safe:         resp.Safe,
			Score:        resp.Score,
			Category:     resp.Category,
			CreatedAt:    time.Now(),
		}
		if err := s.store.SaveVerdict(r.Context(), v); err != nil {
			s.logger.LogScanError(name, err)
		}
	}

	if resp.Rejected {
		s.logger.LogSubmissionRejected(id, name, resp.RiskScore, len(scan.Findings))
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	s.logger.LogSubmissionStored(id, name, resp.RiskLevel, resp.RiskScore, resp.Score, resp.Category)
	writeJSON(w, http.StatusOK, resp)
}

// handleList returns recent verdicts, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "persistence disabled"})
		return
	}
	verdicts, err := s.store.Recent(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if verdicts == nil {
		verdicts = []store.Verdict{}
	}
	writeJSON(w, http.StatusOK, verdicts)
}

// handleGet returns a single verdict by id.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "persistence disabled"})
		return
	}
	id := r.PathValue("id")
	v, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "submission not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// healthResponse is the JSON response returned by the /healthz endpoint.
type healthResponse struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	PatternCategories int     `json:"pattern_categories"`
	MaxUploadMB       int     `json:"max_upload_mb"`
	PersistenceOn     bool    `json:"persistence_enabled"`
}

// handleHealth returns server health including uptime and feature flags.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cfg := s.cfgPtr.Load()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "healthy",
		Version:           Version,
		UptimeSeconds:     time.Since(s.startTime).Seconds(),
		PatternCategories: len(cfg.Security.Categories),
		MaxUploadMB:       cfg.Server.MaxUploadMB,
		PersistenceOn:     s.store != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Best effort: header already sent, log to stderr
		fmt.Fprintf(os.Stderr, "agentvet: writeJSON encode error: %v\n", err)
	}
}
