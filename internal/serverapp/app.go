// Package serverapp wires configuration, storage, schema management and the
// HTTP surface into one server lifecycle: New, Init, Start, WaitForStop, Shutdown.
package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"model-graphql/internal/auth"
	"model-graphql/internal/backend"
	"model-graphql/internal/config"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemagen"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/store"
)

// App owns runtime resources for the model-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	mode   schemagen.Mode

	loggerProvider *observability.LoggerProvider

	meterProvider        *observability.MeterProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	authMetrics          *observability.AuthMetrics
	tracerProvider       *observability.TracerProvider

	store store.Store
	// db is nil for the memory driver.
	db *sql.DB

	tokens  *auth.TokenIssuer
	service *backend.Service

	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc

	graphqlHandler http.Handler
	adminHandler   http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	mode, err := schemagen.ParseMode(cfg.Schema.OutputMode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema output mode: %w", err)
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		mode:   mode,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
