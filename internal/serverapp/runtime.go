package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Start launches the HTTP server goroutine. It requires Init to have completed
// and returns the running server's error channel on repeated calls.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, errors.New("app is not initialized")
	}
	if !a.started {
		a.serverErrors = startServer(a.cfg, a.logger, a.srv)
		a.started = true
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server fails. A nil
// serverErrors falls back to the channel returned by Start. The reason is
// "signal" or "server_error".
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		if a.serverErrors != nil {
			serverErrors = a.serverErrors
		}
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", errors.New("both stop and serverErrors channels are nil")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case err := <-serverErrors:
		if err == nil {
			return "server_error", errors.New("server stopped unexpectedly")
		}
		return "server_error", fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	}
}
