package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatbridge/config"
	"chatbridge/internal/core"
)

const defaultMetricsPath = "/metrics"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string              // Optional: Master key for authentication
	MetricsEnabled  bool                // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string              // HTTP path for metrics endpoint (default: /metrics)
	MetricsGatherer prometheus.Gatherer // Source of exposed metrics (default: prometheus.DefaultGatherer)
	BodySizeLimit   string              // Max request body size, e.g. "1M" (default: config.DefaultBodySizeLimit)
}

// New creates a new HTTP server
func New(resolver core.Resolver, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	handler := NewHandler(resolver)

	// Build list of paths that skip authentication
	authSkipPaths := []string{"/", "/health"}

	metricsPath := resolveMetricsPath(cfg.MetricsEndpoint)
	if cfg.MetricsEnabled {
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: core.RequestIDHeader,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	bodySizeLimit := cfg.BodySizeLimit
	if bodySizeLimit == "" {
		bodySizeLimit = config.DefaultBodySizeLimit
	}
	e.Use(middleware.BodyLimit(bodySizeLimit))

	// Authentication (skips public paths)
	if cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/", handler.Health)
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		gatherer := cfg.MetricsGatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API routes
	e.POST("/chat", handler.Chat)
	e.GET("/candidates", handler.Candidates)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// reservedPaths cannot be claimed by the metrics endpoint
var reservedPaths = map[string]bool{
	"/":           true,
	"/health":     true,
	"/chat":       true,
	"/candidates": true,
}

// resolveMetricsPath normalizes the configured path and falls back to /metrics
// when it would shadow an API route.
func resolveMetricsPath(endpoint string) string {
	if endpoint == "" {
		return defaultMetricsPath
	}
	cleaned := path.Clean("/" + endpoint)
	if reservedPaths[cleaned] {
		slog.Warn("metrics endpoint conflicts with an API route, using default",
			"configured", endpoint,
			"using", defaultMetricsPath,
		)
		return defaultMetricsPath
	}
	return cleaned
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				slog.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

// httpErrorHandler renders echo's own errors (unknown route, body too large)
// in the same envelope as API errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "an unexpected error occurred"
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}

	errType := "internal_error"
	switch {
	case status == http.StatusNotFound:
		errType = string(core.ErrorTypeNotFound)
	case status >= 400 && status < 500:
		errType = string(core.ErrorTypeInvalidRequest)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
