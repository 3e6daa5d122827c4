package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"model-graphql/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition: the HTTP
// server stops before the schema watcher, the watcher before storage, and
// storage before the telemetry that observes it.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run calls every cleanup even when earlier ones fail and returns their
// errors joined.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		err := item.fn(ctx)
		if logger == nil {
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			}
			continue
		}
		if err != nil {
			logger.Warn("cleanup error",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			continue
		}
		logger.Debug("released "+item.name, slog.Duration("duration", time.Since(start)))
	}
	s.items = nil
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Only the first call does work;
// later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.cleanup = cleanupStack{}
		a.started = false
		a.stateMu.Unlock()

		if a.logger != nil {
			a.logger.Info("shutting down", slog.Int("components", len(cleanup.items)))
		}
		err = cleanup.run(ctx, a.logger)
	})
	return err
}
