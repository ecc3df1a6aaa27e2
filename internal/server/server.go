// Package server provides the HTTP API for page annotation and tag lookup.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/server/ratelimit"
	"github.com/jonathan/addrlens/internal/tags"
)

// maxBodyBytes caps request bodies for /annotate and /tags/import.
const maxBodyBytes = 10 << 20

// PageFetcher loads the HTML of a page for /annotate requests that name a URL.
type PageFetcher func(ctx context.Context, url string, useBrowser bool) (string, error)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         *config.Config
	store       tags.Store
	resolver    tags.Resolver
	fetchPage   PageFetcher
	rateLimiter *ratelimit.Limiter
	log         *logger.Logger
	onShutdown  []func()
}

// Option customizes a Server.
type Option func(*Server)

// WithFetcher replaces the page fetcher used by /annotate.
func WithFetcher(f PageFetcher) Option {
	return func(s *Server) { s.fetchPage = f }
}

// WithLogger sets the request and error logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// OnShutdown registers fn to run after the HTTP server has drained, for example
// closing the database pool.
func OnShutdown(fn func()) Option {
	return func(s *Server) { s.onShutdown = append(s.onShutdown, fn) }
}

// New creates a new server over store.
func New(cfg *config.Config, store tags.Store, opts ...Option) *Server {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		resolver: tags.NewResolver(cfg.CanonicalSource),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	if s.fetchPage == nil {
		s.fetchPage = s.defaultFetcher
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig(cfg.Server.RateLimit, cfg.Server.Burst))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /annotate", s.handleAnnotate)
	mux.HandleFunc("GET /tags", s.handleListTags)
	mux.HandleFunc("GET /tags/{address}", s.handleGetTag)
	mux.HandleFunc("POST /tags/import", s.handleImportTags)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // browser rendering can be slow
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening and blocks until SIGINT or SIGTERM, then shuts down.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done and then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.cleanup()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.cleanup()
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.cleanup()
	s.log.Info().Msg("server stopped")
	return nil
}

func (s *Server) cleanup() {
	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()
	for _, fn := range s.onShutdown {
		fn()
	}
}

func (s *Server) defaultFetcher(ctx context.Context, url string, useBrowser bool) (string, error) {
	opts := fetch.DefaultOptions()
	if s.cfg.FetchTimeout.Duration > 0 {
		opts.Timeout = s.cfg.FetchTimeout.Duration
	}
	opts.UseBrowser = useBrowser || s.cfg.UseBrowser
	return fetch.Page(ctx, url, opts, s.log)
}

// withCORS adds CORS headers. An empty allow list admits every origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := s.cfg.Server.AllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(allowed) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		ev := s.log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status code and writes it. Internal errors are logged and
// their detail withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	if status == http.StatusInternalServerError {
		s.errorResponse(w, status, http.StatusText(status))
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// X-Forwarded-For is not trusted; the limiter keys on the peer address.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.log.Warn().
		Str("client", clientID).
		Int("limit", info.Limit).
		Time("reset", info.ResetTime).
		Msg("rate limit exceeded")

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
