// Package http exposes the JSON API: employee application lifecycle,
// usage dashboards, and the admin review surface.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lofawell/internal/blob"
	"lofawell/internal/core"
	"lofawell/internal/engine"
	applog "lofawell/internal/log"
	"lofawell/internal/sheets"
	"lofawell/internal/store"
)

// Deps bundles everything the server serves from. Optional fields
// (Blobs, Exporter) disable the matching feature when nil.
type Deps struct {
	Applications *engine.ApplicationService
	Review       *engine.ReviewService
	Usage        *engine.UsageService
	Users        store.UserDirectory
	Settings     store.SettingsStore
	Repo         store.ApplicationRepository

	Blobs    blob.Store
	Exporter sheets.BulkExporter

	// AttachmentDir, when set, is served under /attachments/ for the
	// filesystem blob backend.
	AttachmentDir string
}

type Server struct {
	http.Server
	deps         Deps
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		deps:        deps,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/applications", s.guard(s.handleSubmit))
	mux.HandleFunc("GET /api/applications", s.guard(s.handleListMine))
	mux.HandleFunc("PUT /api/applications/{id}", s.guard(s.handleResubmit))
	mux.HandleFunc("POST /api/applications/{id}/cancel", s.guard(s.handleCancel))
	mux.HandleFunc("DELETE /api/applications/{id}", s.guard(s.handleRemove))

	mux.HandleFunc("GET /api/usage", s.guard(s.handleUsageOverview))
	mux.HandleFunc("GET /api/usage/check", s.guard(s.handleUsageCheck))
	mux.HandleFunc("GET /api/announcement", s.guard(s.handleGetAnnouncement))

	mux.HandleFunc("GET /api/admin/summary", s.guard(s.handleAdminSummary))
	mux.HandleFunc("POST /api/admin/applications/{id}/decision", s.guard(s.handleDecision))
	mux.HandleFunc("PUT /api/admin/announcement", s.guard(s.handleSetAnnouncement))
	mux.HandleFunc("POST /api/admin/export", s.guard(s.handleExport))

	if deps.AttachmentDir != "" {
		files := http.StripPrefix("/attachments/", http.FileServer(http.Dir(deps.AttachmentDir)))
		mux.Handle("GET /attachments/", files)
	}

	return s
}

// guard wraps a handler with security headers, rate limiting on
// writes, request id tracing and completion logging.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		reqLog := applog.FromContext(ctx).With("request_id", requestID)
		ctx = applog.IntoContext(ctx, reqLog)
		r = r.WithContext(ctx)

		reqLog.Info("Request started",
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			reqLog.Warn("Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLog.Info("Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// actor resolves the caller from the employee header set by the
// authenticating front proxy. The admin flag comes from the user
// directory; an unknown employee is a valid non-admin caller (their
// directory record may lag behind their first submission).
func (s *Server) actor(r *http.Request) (engine.Actor, error) {
	id := r.Header.Get("X-Employee-ID")
	if id == "" {
		return engine.Actor{}, errMissingIdentity
	}

	actor := engine.Actor{ID: id}
	u, err := s.deps.Users.GetUser(r.Context(), id)
	if err == nil {
		actor.Admin = u.Admin
	} else if !errors.Is(err, core.ErrNotFound) {
		return engine.Actor{}, fmt.Errorf("resolve user: %w", err)
	}
	return actor, nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the rate limiter's cleanup goroutine before draining
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
