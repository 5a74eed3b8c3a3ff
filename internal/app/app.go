// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the chat bridge.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"chatbridge/config"
	"chatbridge/internal/core"
	"chatbridge/internal/observability"
	"chatbridge/internal/providers/gemini"
	"chatbridge/internal/resolver"
	"chatbridge/internal/server"
)

// App represents the main application with all its dependencies.
type App struct {
	config    *config.Config
	generator core.Generator
	resolver  *resolver.Resolver
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the result of config.Load.
	AppConfig *config.LoadResult

	// Generator performs upstream attempts. Defaults to the Gemini provider
	// pointed at AppConfig's base URL.
	Generator core.Generator

	// Registry receives the metrics collectors when metrics are enabled.
	// Defaults to the global Prometheus registry.
	Registry *prometheus.Registry

	// Interactive is set when the app only backs the in-process chat session.
	// Server-only startup notices are skipped.
	Interactive bool
}

// New creates a new App with all dependencies initialized.
func New(cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config contains nil Config")
	}

	appCfg := cfg.AppConfig.Config

	generator := cfg.Generator
	if generator == nil {
		provider := gemini.New()
		if appCfg.Gemini.BaseURL != "" {
			provider.SetBaseURL(appCfg.Gemini.BaseURL)
		}
		generator = provider
	}

	var (
		hooks    resolver.Hooks
		gatherer prometheus.Gatherer
	)
	if appCfg.Metrics.Enabled {
		var registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer = prometheus.DefaultGatherer
		if cfg.Registry != nil {
			registerer = cfg.Registry
			gatherer = cfg.Registry
		}
		hooks = observability.NewPrometheusHooks(registerer)
	}

	app := &App{
		config:    appCfg,
		generator: generator,
		resolver: resolver.New(resolver.Config{
			APIKey:         appCfg.Gemini.APIKey,
			Candidates:     appCfg.Gemini.Candidates,
			AttemptTimeout: appCfg.Gemini.Timeout,
		}, generator, hooks),
	}

	app.server = server.New(app.resolver, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		MetricsGatherer: gatherer,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
	})

	if cfg.AppConfig.ConfigFile != "" {
		slog.Info("config file loaded", "path", cfg.AppConfig.ConfigFile)
	}
	app.logStartupInfo(cfg.Interactive)

	return app, nil
}

// Resolver returns the fallback resolver shared by the HTTP server and the interactive client.
func (a *App) Resolver() core.Resolver {
	return a.resolver
}

// Handler returns the HTTP handler, for use with httptest.
func (a *App) Handler() http.Handler {
	return a.server
}

// ListModels lists generateContent models for every API version used by the
// configured candidates, or for both versions when none are configured.
func (a *App) ListModels(ctx context.Context) ([]core.Model, error) {
	lister, ok := a.generator.(core.ModelLister)
	if !ok {
		return nil, fmt.Errorf("generator %T cannot list models", a.generator)
	}
	if a.config.Gemini.APIKey == "" {
		return nil, core.NewConfigurationError("GEMINI_API_KEY is not set")
	}

	var models []core.Model
	for _, version := range a.apiVersions() {
		found, err := lister.ListModels(ctx, a.config.Gemini.APIKey, version)
		if err != nil {
			return nil, fmt.Errorf("list %s models: %w", version, err)
		}
		models = append(models, found...)
	}
	return models, nil
}

func (a *App) apiVersions() []core.APIVersion {
	var versions []core.APIVersion
	seen := map[core.APIVersion]bool{}
	for _, c := range a.config.Gemini.Candidates {
		if !seen[c.APIVersion] {
			seen[c.APIVersion] = true
			versions = append(versions, c.APIVersion)
		}
	}
	if len(versions) == 0 {
		versions = []core.APIVersion{core.APIVersionV1Beta, core.APIVersionV1}
	}
	return versions
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, honoring ctx for in-flight requests.
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			return fmt.Errorf("server shutdown: %w", err)
		}
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
// The API key itself is never logged.
func (a *App) logStartupInfo(interactive bool) {
	cfg := a.config

	if cfg.Gemini.APIKey == "" {
		slog.Warn("GEMINI_API_KEY not set - chat requests will fail with config_error",
			"recommendation", "set GEMINI_API_KEY in the environment or a .env file")
	}
	if len(cfg.Gemini.Candidates) == 0 {
		slog.Warn("no candidate models configured - chat requests will fail with config_error")
	}

	candidates := make([]string, len(cfg.Gemini.Candidates))
	for i, c := range cfg.Gemini.Candidates {
		candidates[i] = c.String()
	}
	slog.Info("fallback configured",
		"candidates", candidates,
		"attempt_timeout", a.resolver.AttemptTimeout(),
		"base_url", cfg.Gemini.BaseURL,
	)

	if interactive {
		return
	}

	if cfg.Server.MasterKey == "" {
		slog.Warn("CHATBRIDGE_MASTER_KEY not set - server accepts unauthenticated requests")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}
}
