package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	// Telemetry providers and the storage connection are independent; the
	// database ping dominates startup, so they are brought up together.
	var (
		telemetry telemetryResult
		storage   storageResult
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		telemetry, err = initTelemetry(a.cfg, a.logger)
		return err
	})
	group.Go(func() error {
		var err error
		storage, err = openStorage(groupCtx, a.cfg, a.logger)
		return err
	})
	groupErr := group.Wait()
	// Whatever came up is released, even when its sibling failed.
	telemetry.pushCleanup(&cleanup, a.logger)
	storage.pushCleanup(&cleanup)
	if groupErr != nil {
		return groupErr
	}
	if telemetry.meterProvider != nil && storage.db != nil {
		unregister, err := registerDBStats(storage.db)
		if err != nil {
			a.logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		} else {
			cleanup.push("DB stats metrics", func(_ context.Context) error { return unregister() })
		}
	}

	tokens, service, err := buildBackend(a.cfg, storage.store)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	manager, schemaCancel, err := startSchemaManager(ctx, a.cfg, a.logger, a.mode, service, telemetry.schemaRefreshMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize schema manager: %w", err)
	}
	cleanup.push("schema manager", func(shutdownCtx context.Context) error {
		schemaCancel()
		return manager.Wait(shutdownCtx)
	})

	graphqlHandler, err := buildGraphQLHandler(a.cfg, a.logger, manager, tokens, telemetry.graphqlMetrics, telemetry.authMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}

	adminHandler, err := buildAdminHandler(a.cfg, a.logger, manager, telemetry.authMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, storage.db, manager, graphqlHandler, adminHandler, telemetry.meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = telemetry.meterProvider
	a.graphqlMetrics = telemetry.graphqlMetrics
	a.schemaRefreshMetrics = telemetry.schemaRefreshMetrics
	a.authMetrics = telemetry.authMetrics
	a.tracerProvider = telemetry.tracerProvider
	a.store = storage.store
	a.db = storage.db
	a.tokens = tokens
	a.service = service
	a.manager = manager
	a.schemaCancel = schemaCancel
	a.graphqlHandler = graphqlHandler
	a.adminHandler = adminHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
