package middleware

import (
	"net/http"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
)

// FingerprintFunc reports the fingerprint of the schema currently being served.
type FingerprintFunc func() string

// GraphQLRequestAnalysisMiddleware analyzes the GraphQL request once and
// stores the result in the request context for downstream middleware.
// It must run after token auth so the user id is known.
func GraphQLRequestAnalysisMiddleware(fingerprint FingerprintFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := AnalyzeGraphQLRequest(r)
			if ac, ok := AuthFromContext(r.Context()); ok && ac.Method == "token" {
				info.UserID = ac.Subject
			}
			if fingerprint != nil {
				info.Fingerprint = fingerprint()
			}
			ctx := WithRequestInfo(r.Context(), info)

			if logFields := observability.GraphQLLogFields(ctx, info); len(logFields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(logFields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
