package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"model-graphql/internal/auth"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type authContextKey struct{}

// AuthContext records who a request was authenticated as.
type AuthContext struct {
	Subject string
	Method  string // "token" or "admin_token"
}

// WithAuthContext stores the auth context on ctx.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext returns the auth context from a request context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// UserBinder attaches the request backend for userID ("" for anonymous) to ctx.
type UserBinder func(ctx context.Context, userID string) context.Context

// TokenAuthConfig controls bearer-token authentication on the GraphQL endpoint.
type TokenAuthConfig struct {
	Verifier TokenVerifier
	Bind     UserBinder
	Metrics  *observability.AuthMetrics
}

// TokenAuthMiddleware verifies tokens issued by signinUser. Requests without
// a token continue anonymously; a present but invalid token is rejected so
// clients notice expired sessions instead of silently losing their user.
func TokenAuthMiddleware(cfg TokenAuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("token auth requires a verifier")
	}
	if cfg.Bind == nil {
		return nil, errors.New("token auth requires a user binder")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get("Authorization")
			if strings.TrimSpace(header) == "" {
				next.ServeHTTP(w, r.WithContext(cfg.Bind(ctx, "")))
				return
			}

			raw := bearerToken(header)
			if raw == "" {
				cfg.Metrics.RecordTokenCheck(ctx, "malformed_header")
				writeUnauthorized(w, "malformed authorization header")
				return
			}

			userID, err := cfg.Verifier.Verify(raw)
			if err != nil {
				reason := "invalid_token"
				if !errors.Is(err, auth.ErrInvalidToken) {
					reason = "verification_error"
				}
				cfg.Metrics.RecordTokenCheck(ctx, reason)
				logging.FromContext(ctx).Warn("token verification failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid token")
				return
			}
			cfg.Metrics.RecordTokenCheck(ctx, "")

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.Bool("auth.authenticated", true))
			}
			ctx = WithAuthContext(ctx, AuthContext{Subject: userID, Method: "token"})
			next.ServeHTTP(w, r.WithContext(cfg.Bind(ctx, userID)))
		})
	}, nil
}

func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, message)
}
