package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"model-graphql/internal/auth"
	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/config"
	"model-graphql/internal/logging"
	"model-graphql/internal/middleware"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemagen"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/store"
	"model-graphql/internal/store/memory"
	"model-graphql/internal/store/sqlstore"

	"github.com/XSAM/otelsql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const schemaReloadTimeout = 15 * time.Second

// InitLogger builds the process logger, bridging to OTLP when log export is enabled.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		ServiceName: cfg.Observability.ServiceName,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized")

	return logger, loggerProvider, nil
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

type telemetryResult struct {
	meterProvider        *observability.MeterProvider
	tracerProvider       *observability.TracerProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	authMetrics          *observability.AuthMetrics
}

func (t telemetryResult) pushCleanup(cleanup *cleanupStack, logger *logging.Logger) {
	if t.meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return t.meterProvider.Shutdown(shutdownCtx, logger.Logger)
		})
	}
	if t.tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return t.tracerProvider.Shutdown(shutdownCtx, logger.Logger)
		})
	}
}

func initTelemetry(cfg *config.Config, logger *logging.Logger) (telemetryResult, error) {
	var result telemetryResult
	var err error

	result.meterProvider, err = initMetricsProvider(cfg, logger)
	if err != nil {
		return result, fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if result.meterProvider != nil {
		if result.graphqlMetrics, err = observability.InitMetrics(logger.Logger); err != nil {
			return result, err
		}
		if result.schemaRefreshMetrics, err = observability.InitSchemaRefreshMetrics(logger.Logger); err != nil {
			return result, err
		}
		if result.authMetrics, err = observability.InitAuthMetrics(); err != nil {
			return result, err
		}
		logger.Info("auth metrics initialized")
	}

	result.tracerProvider, err = initTracing(cfg, logger)
	if err != nil {
		return result, fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	return result, nil
}

func initMetricsProvider(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)
	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry metrics initialized")
	return meterProvider, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized")
	return tracerProvider, nil
}

type storageResult struct {
	store store.Store
	db    *sql.DB
	close func() error
}

func (s storageResult) pushCleanup(cleanup *cleanupStack) {
	if s.close != nil {
		cleanup.push("storage", func(_ context.Context) error { return s.close() })
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logging.Logger) (storageResult, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		logger.Info("using in-memory storage; records are lost on restart")
		return storageResult{store: memory.New()}, nil
	case "mysql":
		if cfg.Storage.ConnectionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Storage.ConnectionTimeout)
			defer cancel()
		}
		logger.Info("connecting to MySQL storage", slog.Bool("sql_tracing", cfg.Observability.SQLTracingEnabled))
		st, err := sqlstore.Open(ctx, sqlstore.Config{
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.Pool.MaxOpen,
			MaxIdleConns:    cfg.Storage.Pool.MaxIdle,
			ConnMaxLifetime: cfg.Storage.Pool.MaxLifetime,
			Instrument:      cfg.Observability.SQLTracingEnabled,
		})
		if err != nil {
			return storageResult{}, fmt.Errorf("failed to open storage: %w", err)
		}
		return storageResult{store: st, db: st.DB(), close: st.Close}, nil
	default:
		return storageResult{}, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func registerDBStats(db *sql.DB) (func() error, error) {
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}

func buildBackend(cfg *config.Config, st store.Store) (*auth.TokenIssuer, *backend.Service, error) {
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   []byte(cfg.Auth.TokenSecret),
		Issuer:   cfg.Auth.Issuer,
		TTL:      cfg.Auth.TokenTTL,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return nil, nil, err
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	// The schema is filled in per snapshot by the manager.
	return tokens, backend.NewService(st, clientschema.Schema{}, hasher, tokens), nil
}

func startSchemaManager(ctx context.Context, cfg *config.Config, logger *logging.Logger, mode schemagen.Mode, service *backend.Service, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Manager, context.CancelFunc, error) {
	manager, err := schemarefresh.NewManager(ctx, schemarefresh.Config{
		Path:     cfg.Schema.Path,
		Mode:     mode,
		Service:  service,
		Logger:   logger,
		Metrics:  metrics,
		GraphiQL: cfg.Server.GraphiQLEnabled,
		Watch:    cfg.Schema.Watch,
		Debounce: cfg.Schema.Debounce,
	})
	if err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(watchCtx); err != nil {
		cancel()
		return nil, nil, err
	}
	return manager, cancel, nil
}

// buildGraphQLHandler assembles the /graphql chain:
//
//	logging -> token auth -> request analysis -> tracing -> metrics -> snapshot handler
//
// Analysis runs after auth so spans and log lines carry the user id.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, verifier middleware.TokenVerifier, graphqlMetrics *observability.GraphQLMetrics, authMetrics *observability.AuthMetrics) (http.Handler, error) {
	handler := manager.Handler()

	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}
	handler = middleware.GraphQLTracingMiddleware()(handler)
	handler = middleware.GraphQLRequestAnalysisMiddleware(manager.Fingerprint)(handler)

	tokenAuth, err := middleware.TokenAuthMiddleware(middleware.TokenAuthConfig{
		Verifier: verifier,
		Bind:     backend.WithUserID,
		Metrics:  authMetrics,
	})
	if err != nil {
		return nil, err
	}
	handler = tokenAuth(handler)

	return middleware.LoggingMiddleware(logger)(handler), nil
}

func buildAdminHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, authMetrics *observability.AuthMetrics) (http.Handler, error) {
	if !cfg.Server.Admin.SchemaReloadEnabled {
		return nil, nil
	}
	adminAuth, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
		Token:     cfg.Server.Admin.AuthToken,
		Operation: "schema_reload",
		Metrics:   authMetrics,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("schema reload endpoint enabled", slog.String("path", "/admin/reload-schema"))
	return middleware.LoggingMiddleware(logger)(adminAuth(schemaReloadHandler(manager))), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, manager *schemarefresh.Manager, graphqlHandler http.Handler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(db, manager, cfg.Server.HealthCheckTimeout))
	if adminHandler != nil {
		mux.Handle("/admin/reload-schema", adminHandler)
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics", "/admin/reload-schema":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", srv.Addr),
			slog.String("graphql_endpoint", "/graphql"),
			slog.String("health_endpoint", "/health"),
			slog.String("schema_path", cfg.Schema.Path),
			slog.String("output_mode", cfg.Schema.OutputMode),
			slog.String("storage_driver", cfg.Storage.Driver),
			slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Schema  string `json:"schema,omitempty"`
}

// healthHandler reports storage reachability and the served schema fingerprint.
func healthHandler(db *sql.DB, manager *schemarefresh.Manager, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		resp := healthResponse{Status: "healthy", Storage: "memory"}
		if manager != nil {
			resp.Schema = manager.Fingerprint()
		}
		status := http.StatusOK

		if db != nil {
			ctx := r.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := db.PingContext(ctx); err != nil {
				reqLogger.Error("health check failed",
					slog.String("error", err.Error()),
					slog.String("check", "storage"),
				)
				resp.Status = "unhealthy"
				resp.Storage = "failed"
				status = http.StatusServiceUnavailable
			} else {
				resp.Storage = "ok"
			}
		}
		if resp.Schema == "" && status == http.StatusOK {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type reloadResponse struct {
	Status      string `json:"status"`
	Changed     bool   `json:"changed"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Models      int    `json:"models,omitempty"`
	Message     string `json:"message,omitempty"`
}

func schemaReloadHandler(manager *schemarefresh.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = fmt.Fprint(w, `{"error":"method not allowed"}`)
			return
		}

		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		logAttrs := []any{
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		}
		if authenticated {
			logAttrs = append(logAttrs, slog.String("auth_method", authCtx.Method))
		}
		reqLogger.Info("admin endpoint accessed", logAttrs...)

		refreshCtx, cancel := context.WithTimeout(r.Context(), schemaReloadTimeout)
		defer cancel()

		result, err := manager.RefreshNow(refreshCtx)
		if err != nil {
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(reloadResponse{Status: "error", Message: "schema reload failed; previous schema still served"})
			return
		}

		reqLogger.Info("schema reload finished",
			slog.Bool("changed", result.Changed),
			slog.String("fingerprint", result.Fingerprint),
		)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(reloadResponse{
			Status:      "ok",
			Changed:     result.Changed,
			Fingerprint: result.Fingerprint,
			Models:      result.Models,
		})
	}
}
