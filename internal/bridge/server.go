package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/cellnode/internal/events"
)

// Ingress is the part of the bus the bridge feeds.
type Ingress interface {
	PublishRaw(channel string, payload json.RawMessage) error
	Depth() int
}

// ServiceHost answers service calls for in-process services.
type ServiceHost interface {
	Exists(ctx context.Context, name string) bool
	Call(ctx context.Context, name string, req, resp any) error
}

// MetricsExporter serves the metrics endpoint and counts ingress results.
type MetricsExporter interface {
	Handler() http.Handler
	ObserveBridgeRequest(code int)
}

// Server is the HTTP bridge between external producers and the bus.
type Server struct {
	config    Config
	ingress   Ingress
	services  ServiceHost
	hub       *events.Hub
	metrics   MetricsExporter
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithServiceHost exposes in-process services under /services.
func WithServiceHost(h ServiceHost) Option {
	return func(s *Server) { s.services = h }
}

// WithMetrics serves /metrics and counts ingress responses.
func WithMetrics(m MetricsExporter) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a bridge server. hub feeds GET /v1/events.
func New(config Config, ingress Ingress, hub *events.Hub, logger *slog.Logger, opts ...Option) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		config:    config,
		ingress:   ingress,
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// No write timeout: /v1/events streams for the life of the client.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("bridge server starting", "listen", s.config.Listen, "auth", s.config.Token != "")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("bridge server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridge server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("bridge server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/v1/channels", s.handleChannels)
		r.Post("/v1/channels/*", s.handlePublish)
		r.Get("/v1/events", s.handleEvents)
		if s.services != nil {
			r.Get("/services/*", s.handleServiceExists)
			r.Post("/services/*", s.handleServiceCall)
		}
	})

	return r
}

// loggingMiddleware logs HTTP requests (no bodies).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
