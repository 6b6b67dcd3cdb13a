// Package api exposes the classification dispatcher over HTTP.
package api

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/datastore"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
	"github.com/tphakala/imageclassifier/internal/observability"
)

// DefaultBodyLimit caps uploaded request bodies.
const DefaultBodyLimit = "32M"

// Dispatcher is the subset of classifier.Dispatcher the API drives.
type Dispatcher interface {
	Classify(img image.Image, current classifier.ModelType, compare bool) uint64
	Reset()
	Snapshot() classifier.State
	Wait(ctx context.Context, generation uint64) (classifier.State, error)
}

// HistoryStore is the read side of the classification history.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]datastore.Classification, error)
	Get(ctx context.Context, requestID string) (*datastore.Classification, error)
}

// Server is the HTTP server for the classification API.
type Server struct {
	echo         *echo.Echo
	settings     *conf.Settings
	dispatcher   Dispatcher
	metrics      *observability.Metrics
	history      HistoryStore // nil when history is disabled
	results      *cache.Cache // nil when caching is disabled
	defaultModel classifier.ModelType
	startTime    time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHistory enables the classification history endpoints.
func WithHistory(h HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

// New creates a Server with routes and middleware registered.
func New(settings *conf.Settings, d Dispatcher, opts ...ServerOption) (*Server, error) {
	defaultModel, err := classifier.ParseModelType(settings.Classifier.DefaultModel)
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("setting", "classifier.defaultmodel").
			Build()
	}

	s := &Server{
		settings:     settings,
		dispatcher:   d,
		defaultModel: defaultModel,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if ttl := settings.WebServer.CacheTTL; ttl > 0 {
		s.results = cache.New(ttl, 2*ttl)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second

	s.setupMiddleware()
	s.setupRoutes()

	GetLogger().Info("HTTP server initialized",
		logger.String("address", settings.WebServer.Listen),
		logger.Bool("cache", s.results != nil),
		logger.Bool("history", s.history != nil),
		logger.Bool("metrics", s.metricsEnabled()))

	return s, nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) metricsEnabled() bool {
	return s.metrics != nil && s.settings.Metrics.Enabled
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(s.requestIDMiddleware())
	s.echo.Use(s.requestLogger())
	if s.metricsEnabled() {
		s.echo.Use(s.metricsMiddleware())
	}
	s.echo.Use(echomw.BodyLimit(DefaultBodyLimit))
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/api/v1")
	g.GET("/health", s.healthCheck)
	g.GET("/models", s.listModels)
	if limiter := s.classifyRateLimiter(); limiter != nil {
		g.POST("/classify", s.classify, limiter)
	} else {
		g.POST("/classify", s.classify)
	}
	g.GET("/results", s.getResults)
	g.DELETE("/results", s.resetResults)
	g.GET("/system", s.systemInfo)

	if s.history != nil {
		g.GET("/history", s.listHistory)
		g.GET("/history/:requestID", s.getHistory)
	}

	if s.metricsEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		GetLogger().Info("Starting HTTP server", logger.String("address", s.settings.WebServer.Listen))
		errCh <- s.echo.Start(s.settings.WebServer.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("address", s.settings.WebServer.Listen).
			Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	GetLogger().Info("Shutting down HTTP server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.results != nil {
		s.results.Flush()
	}
	return nil
}
