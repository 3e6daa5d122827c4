package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts bearer-token verification and admin endpoint access.
type AuthMetrics struct {
	tokenChecks   metric.Int64Counter
	tokenFailures metric.Int64Counter
	adminAccess   metric.Int64Counter
}

// InitAuthMetrics initializes authentication metrics.
func InitAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter(MeterName + "/auth")

	tokenChecks, err := meter.Int64Counter(
		"auth.token.checks.total",
		metric.WithDescription("Total number of bearer tokens presented"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token checks counter: %w", err)
	}

	tokenFailures, err := meter.Int64Counter(
		"auth.token.failures.total",
		metric.WithDescription("Total number of rejected bearer tokens"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token failures counter: %w", err)
	}

	adminAccess, err := meter.Int64Counter(
		"auth.admin.access.total",
		metric.WithDescription("Total number of admin endpoint access attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin access counter: %w", err)
	}

	return &AuthMetrics{
		tokenChecks:   tokenChecks,
		tokenFailures: tokenFailures,
		adminAccess:   adminAccess,
	}, nil
}

// RecordTokenCheck records a presented bearer token. reason is empty on success.
func (m *AuthMetrics) RecordTokenCheck(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.tokenChecks.Add(ctx, 1)
	if reason != "" {
		m.tokenFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordAdminAccess records an admin endpoint request.
func (m *AuthMetrics) RecordAdminAccess(ctx context.Context, operation string, authenticated bool) {
	if m == nil {
		return
	}
	m.adminAccess.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("authenticated", authenticated),
	))
}
