// Package schemarefresh builds schema snapshots and refreshes them when the
// description file changes.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemagen"

	"github.com/fsnotify/fsnotify"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

// Snapshot contains an immutable view of the current schema state.
type Snapshot struct {
	Schema      *graphql.Schema
	Handler     http.Handler
	Source      clientschema.Schema
	Service     *backend.Service
	BuiltAt     time.Time
	Fingerprint string
}

// Config controls schema refresh behavior.
type Config struct {
	Path     string
	Mode     schemagen.Mode
	Service  *backend.Service
	Logger   *logging.Logger
	Metrics  *observability.SchemaRefreshMetrics
	GraphiQL bool
	Watch    bool
	Debounce time.Duration
}

// RefreshResult describes the outcome of a refresh attempt.
type RefreshResult struct {
	Changed     bool
	Fingerprint string
	Models      int
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	path     string
	mode     schemagen.Mode
	service  *backend.Service
	logger   *logging.Logger
	metrics  *observability.SchemaRefreshMetrics
	graphiQL bool
	watch    bool
	debounce time.Duration

	active atomic.Pointer[Snapshot]
	// refreshMu serializes rebuilds; readers never take it.
	refreshMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager builds the initial schema snapshot and returns a manager.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, errors.New("schema refresh manager requires a schema path")
	}
	if cfg.Service == nil {
		return nil, errors.New("schema refresh manager requires a backend service")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	manager := &Manager{
		path:     filepath.Clean(cfg.Path),
		mode:     cfg.Mode,
		service:  cfg.Service,
		logger:   cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:  cfg.Metrics,
		graphiQL: cfg.GraphiQL,
		watch:    cfg.Watch,
		debounce: cfg.Debounce,
	}

	start := time.Now()
	snapshot, err := manager.buildSnapshot(ctx)
	if err != nil {
		manager.metrics.RecordRefresh(ctx, time.Since(start), false, observability.TriggerStartup, 0)
		return nil, err
	}
	manager.active.Store(snapshot)
	manager.metrics.RecordRefresh(ctx, time.Since(start), true, observability.TriggerStartup, len(snapshot.Source.Models))
	manager.logger.Info("schema loaded",
		slog.String("path", manager.path),
		slog.String("mode", string(manager.mode)),
		slog.Int("models", len(snapshot.Source.Models)),
		slog.String("fingerprint", snapshot.Fingerprint),
	)

	return manager, nil
}

// Start begins watching the description file when watching is enabled.
func (m *Manager) Start(ctx context.Context) error {
	if !m.watch {
		m.logger.Info("schema watch disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	// Watch the directory: editors commonly replace the file by rename.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(m.path), err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() { _ = watcher.Close() }()
		m.watchLoop(ctx, watcher.Events, watcher.Errors)
	}()
	m.logger.Info("schema watch started", slog.String("path", m.path), slog.Duration("debounce", m.debounce))
	return nil
}

// Handler returns the HTTP handler that serves the current snapshot.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(m.serveGraphQL)
}

func (m *Manager) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.Handler == nil {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		return
	}
	// The backend is bound here so a request never mixes two snapshots.
	ctx := r.Context()
	svc := snapshot.Service.ForUser(backend.UserIDFromContext(ctx))
	ctx = backend.WithBackend(ctx, svc)
	snapshot.Handler.ServeHTTP(w, r.WithContext(ctx))
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Fingerprint returns the fingerprint of the active snapshot.
func (m *Manager) Fingerprint() string {
	if snapshot := m.CurrentSnapshot(); snapshot != nil {
		return snapshot.Fingerprint
	}
	return ""
}

// RefreshNow reloads the description file and swaps in a new snapshot when
// its fingerprint differs from the active one. A failed rebuild keeps the
// previous snapshot serving.
func (m *Manager) RefreshNow(ctx context.Context) (RefreshResult, error) {
	return m.refresh(ctx, observability.TriggerAdmin)
}

// Wait blocks until the watch loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, trigger string) (RefreshResult, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	source, fingerprint, err := LoadSource(m.path)
	if err != nil {
		m.metrics.RecordRefresh(ctx, time.Since(start), false, trigger, 0)
		return RefreshResult{}, err
	}

	if current := m.CurrentSnapshot(); current != nil && current.Fingerprint == fingerprint {
		m.logger.Debug("schema unchanged", slog.String("trigger", trigger), slog.String("fingerprint", fingerprint))
		return RefreshResult{Fingerprint: fingerprint, Models: len(source.Models)}, nil
	}

	snapshot, err := m.compileSnapshot(ctx, source)
	if err != nil {
		m.metrics.RecordRefresh(ctx, time.Since(start), false, trigger, 0)
		return RefreshResult{}, err
	}
	m.active.Store(snapshot)
	m.metrics.RecordRefresh(ctx, time.Since(start), true, trigger, len(source.Models))
	m.logger.Info("schema refresh complete",
		slog.String("trigger", trigger),
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("models", len(source.Models)),
		slog.Duration("duration", time.Since(start)),
	)
	return RefreshResult{Changed: true, Fingerprint: snapshot.Fingerprint, Models: len(source.Models)}, nil
}

func (m *Manager) watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema watch stopped")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if !m.relevant(event) {
				continue
			}
			stopTimer()
			timer = time.NewTimer(m.debounce)
			pending = timer.C
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.logger.Warn("schema watcher error", slog.String("error", err.Error()))
		case <-pending:
			pending = nil
			if _, err := m.refresh(ctx, observability.TriggerWatch); err != nil {
				m.logger.Error("schema refresh failed, keeping previous schema", slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Manager) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != m.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (m *Manager) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	source, _, err := LoadSource(m.path)
	if err != nil {
		return nil, err
	}
	return m.compileSnapshot(ctx, source)
}

func (m *Manager) compileSnapshot(ctx context.Context, source clientschema.Schema) (*Snapshot, error) {
	built, err := CompileSchema(ctx, source, BuildSchemaConfig{Path: m.path, Mode: m.mode, Logger: m.logger})
	if err != nil {
		return nil, err
	}
	for _, model := range source.Models {
		m.logger.Debug("model compiled",
			slog.String("model", model.ModelName),
			slog.Int("fields", len(model.Fields)),
		)
	}

	graphqlSchema := built.GraphQLSchema
	graphqlHandler := handler.New(&handler.Config{
		Schema:   &graphqlSchema,
		Pretty:   true,
		GraphiQL: m.graphiQL,
	})

	return &Snapshot{
		Schema:      &graphqlSchema,
		Handler:     graphqlHandler,
		Source:      source,
		Service:     m.service.WithSchema(source),
		BuiltAt:     time.Now(),
		Fingerprint: built.Fingerprint,
	}, nil
}
