package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"model-graphql/internal/observability"
)

const defaultAdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig controls shared-token authentication for admin endpoints.
type AdminTokenAuthConfig struct {
	Token      string
	HeaderName string
	Operation  string
	Metrics    *observability.AuthMetrics
}

// AdminTokenAuthMiddleware checks a shared admin token taken from HeaderName
// or, failing that, from an Authorization bearer header.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = defaultAdminTokenHeader
	}
	operation := cfg.Operation
	if operation == "" {
		operation = "admin"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(headerName))
			if provided == "" {
				provided = bearerToken(r.Header.Get("Authorization"))
			}
			ok := provided != "" && constantTimeTokenMatch(provided, token)
			cfg.Metrics.RecordAdminAccess(r.Context(), operation, ok)
			if !ok {
				writeUnauthorized(w, "unauthorized")
				return
			}

			ctx := WithAuthContext(r.Context(), AuthContext{Subject: "admin", Method: "admin_token"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func constantTimeTokenMatch(provided string, expected string) bool {
	providedDigest := sha256.Sum256([]byte(provided))
	expectedDigest := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(providedDigest[:], expectedDigest[:]) == 1
}
