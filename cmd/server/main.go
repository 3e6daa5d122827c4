package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"model-graphql/internal/config"
	"model-graphql/internal/logging"
	"model-graphql/internal/schemagen"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/serverapp"

	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.Bool("version", false, "Print version and exit")
	pflag.Bool("check", false, "Compile the schema description and exit without serving")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Println(versionString())
		return nil
	}

	if check, _ := pflag.CommandLine.GetBool("check"); check {
		summary, err := checkSchema(context.Background(), cfg)
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(context.Background()); err != nil {
		return err
	}

	serverErrors, err := app.Start()
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down server gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	shutdownErr := app.Shutdown(shutdownCtx)
	shutdownCancel()

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("server stopped gracefully")
	return nil
}

func versionString() string {
	return fmt.Sprintf("model-graphql %s (%s)", Version, Commit)
}

// checkSchema compiles the configured description file the same way the
// server does at startup and reports what it would serve.
func checkSchema(ctx context.Context, cfg *config.Config) (string, error) {
	mode, err := schemagen.ParseMode(cfg.Schema.OutputMode)
	if err != nil {
		return "", err
	}
	built, err := schemarefresh.BuildSchema(ctx, schemarefresh.BuildSchemaConfig{
		Path:   cfg.Schema.Path,
		Mode:   mode,
		Logger: logging.Nop(),
	})
	if err != nil {
		return "", fmt.Errorf("schema check failed: %w", err)
	}
	return fmt.Sprintf("%s: %d models, %s mode, fingerprint %s",
		cfg.Schema.Path, len(built.Source.Models), mode, built.Fingerprint), nil
}
