package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mcp-tools-go/internal/arithmetic"
	"mcp-tools-go/internal/mcp"
	"mcp-tools-go/internal/session"
	"mcp-tools-go/internal/telemetry"
	"mcp-tools-go/internal/tools"
	"mcp-tools-go/internal/tools/calculator"
	"mcp-tools-go/internal/tools/weather"
)

// Server bundles the HTTP handler with the background services it depends on.
type Server struct {
	cfg       Config
	logger    zerolog.Logger
	handler   http.Handler
	store     *session.MemoryStore
	sessions  session.SessionManager
	cleanup   *session.CleanupService
	collector *telemetry.SystemMetricsCollector
}

// Option customises New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	registry   *prometheus.Registry
}

// WithHTTPClient sets the client used for upstream weather calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMetricsRegistry sets the registry metrics are registered with and served from.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New creates a server with the given configuration.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if cfg.SessionTimeout <= 0 || cfg.CleanupInterval <= 0 || cfg.MetricsInterval <= 0 {
		return nil, errors.New("session timeout, cleanup interval and metrics interval must be positive")
	}

	metrics := telemetry.NewMetrics(o.registry)
	metrics.SetPrecision(cfg.Precision.Int())
	for _, setting := range cfg.Degraded {
		metrics.RecordConfigDegradation(setting)
	}

	evaluator := arithmetic.NewEvaluator(cfg.Precision, logger)
	calcOpts := calculator.Options{LogLevel: cfg.LogLevel, RawPrecision: cfg.RawPrecision}
	weatherClient := weather.NewClient(cfg.Weather, o.httpClient, logger)

	toolRegistry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		calculator.NewAddTool(evaluator, calcOpts, logger),
		calculator.NewSubtractTool(evaluator, calcOpts, logger),
		weather.NewCurrentTool(weatherClient, logger),
		weather.NewForecastTool(weatherClient, logger),
	} {
		toolRegistry.Register(tool)
		logger.Debug().Str("tool", tool.Name()).Msg("Registered tool")
	}

	store := session.NewMemoryStore(logger)
	manager := session.NewDefaultSessionManager(store, session.ManagerConfig{
		SessionTimeout: cfg.SessionTimeout,
	}, logger)
	sessions := telemetry.NewSessionManagerWrapper(manager, metrics)

	mcpHandler := mcp.NewHandler(
		telemetry.NewToolRegistryWrapper(toolRegistry, metrics),
		sessions,
		mcp.Config{
			ServerName:     cfg.ServerName,
			ServerVersion:  cfg.ServerVersion,
			RequireSession: cfg.RequireSession,
		},
		logger,
	)

	s := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "server").Logger(),
		store:     store,
		sessions:  sessions,
		cleanup:   session.NewCleanupService(sessions, session.CleanupConfig{CleanupInterval: cfg.CleanupInterval}, logger),
		collector: telemetry.NewSystemMetricsCollector(metrics, logger, cfg.MetricsInterval),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(telemetry.HTTPMetricsMiddleware(metrics))

	allowedHeaders := []string{
		"Accept", "Authorization", "Content-Type",
		session.HeaderName, "Mcp-Protocol-Version",
	}
	if cfg.Weather.AllowOverrides {
		allowedHeaders = append(allowedHeaders, weather.HeaderAPIURL, weather.HeaderAPIKey)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: allowedHeaders,
		ExposedHeaders: []string{session.HeaderName},
		MaxAge:         300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(session.NewSessionMiddleware(sessions, logger).Handler())
		if cfg.Weather.AllowOverrides {
			r.Use(weather.ContextMiddleware)
		}
		r.Post(cfg.Path, mcpHandler.HandlePost)
		r.Get(cfg.Path, mcpHandler.HandleGet)
		r.Delete(cfg.Path, mcpHandler.HandleDelete)
	})

	s.handler = r

	s.logger.Info().
		Str("log_level", cfg.LogLevel).
		Str("number_precision", cfg.RawPrecision).
		Int("precision", cfg.Precision.Int()).
		Str("path", cfg.Path).
		Int("tools", len(toolRegistry.List())).
		Msg("Server configured")

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cleanup.Start(ctx)
	defer s.cleanup.Stop()
	go s.collector.Run(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", srv.Addr).
			Str("path", s.cfg.Path).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := srv.Shutdown(shutdownCtx)
	s.store.Close()
	return err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	count, err := s.sessions.GetActiveSessionCount(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count sessions")
	}

	render.JSON(w, r, map[string]any{
		"status":          "ok",
		"precision":       s.cfg.Precision.Int(),
		"active_sessions": count,
	})
}

// requestLogger logs each request through zerolog once it completes.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
