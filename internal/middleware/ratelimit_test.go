package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		cfg            RateLimitConfig
		requests       int
		wantRejected   int
		wantRetryAfter string
	}{
		{name: "disabled", cfg: RateLimitConfig{RPS: 1, Burst: 1}, requests: 5},
		{name: "enabled without burst is a no-op", cfg: RateLimitConfig{Enabled: true, RPS: 1}, requests: 5},
		{name: "burst then reject", cfg: RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}, requests: 4, wantRejected: 2, wantRetryAfter: "1"},
		{name: "slow refill rounds retry up", cfg: RateLimitConfig{Enabled: true, RPS: 0.25, Burst: 1}, requests: 2, wantRejected: 1, wantRetryAfter: "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimitMiddleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			rejected := 0
			var last *httptest.ResponseRecorder
			for i := 0; i < tt.requests; i++ {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
				if rec.Code == http.StatusTooManyRequests {
					rejected++
					last = rec
				}
			}

			assert.Equal(t, tt.wantRejected, rejected)
			if tt.wantRejected > 0 {
				assert.Equal(t, tt.wantRetryAfter, last.Header().Get("Retry-After"))
				assert.JSONEq(t, `{"error":"rate limit exceeded"}`, last.Body.String())
			}
		})
	}
}
