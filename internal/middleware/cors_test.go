package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSMiddleware(t *testing.T) {
	graphqlClient := CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://studio.example", " "},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposeHeaders:  []string{RequestIDHeader},
		MaxAge:         600,
	}

	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		wantCode   int
		wantNext   bool
		wantHeader map[string]string
	}{
		{
			name:       "disabled leaves headers alone",
			cfg:        CORSConfig{AllowedOrigins: []string{"*"}},
			method:     http.MethodPost,
			origin:     "https://studio.example",
			wantCode:   http.StatusOK,
			wantNext:   true,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:     "allowed origin echoed with vary",
			cfg:      graphqlClient,
			method:   http.MethodPost,
			origin:   "https://studio.example",
			wantCode: http.StatusOK,
			wantNext: true,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":   "https://studio.example",
				"Access-Control-Expose-Headers": RequestIDHeader,
				"Vary":                          "Origin",
			},
		},
		{
			name:     "preflight answered without reaching the handler",
			cfg:      graphqlClient,
			method:   http.MethodOptions,
			origin:   "https://studio.example",
			wantCode: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type, Authorization",
				"Access-Control-Max-Age":       "600",
			},
		},
		{
			name:       "unknown origin gets no grant",
			cfg:        graphqlClient,
			method:     http.MethodPost,
			origin:     "https://evil.example",
			wantCode:   http.StatusOK,
			wantNext:   true,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:     "unknown origin preflight still short-circuits",
			cfg:      graphqlClient,
			method:   http.MethodOptions,
			origin:   "https://evil.example",
			wantCode: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":  "",
				"Access-Control-Allow-Methods": "",
			},
		},
		{
			name:       "no origin is not a CORS request",
			cfg:        graphqlClient,
			method:     http.MethodOptions,
			wantCode:   http.StatusOK,
			wantNext:   true,
			wantHeader: map[string]string{"Access-Control-Allow-Methods": ""},
		},
		{
			name:     "wildcard never echoes or allows credentials",
			cfg:      CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, AllowCredentials: true},
			method:   http.MethodGet,
			origin:   "https://anyone.example",
			wantCode: http.StatusOK,
			wantNext: true,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Credentials": "",
				"Vary":                             "",
			},
		},
		{
			name:     "explicit origin with credentials",
			cfg:      CORSConfig{Enabled: true, AllowedOrigins: []string{"https://studio.example"}, AllowCredentials: true},
			method:   http.MethodGet,
			origin:   "https://studio.example",
			wantCode: http.StatusOK,
			wantNext: true,
			wantHeader: map[string]string{
				"Access-Control-Allow-Credentials": "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := CORSMiddleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/graphql", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantNext, reached)
			for key, want := range tt.wantHeader {
				assert.Equal(t, want, rec.Header().Get(key), key)
			}
		})
	}
}

func TestNewCORSPolicy(t *testing.T) {
	p := newCORSPolicy(CORSConfig{AllowedOrigins: []string{" https://a.example ", "", "https://b.example"}})
	assert.False(t, p.anyOrigin)
	assert.True(t, p.allows("https://a.example"))
	assert.True(t, p.allows("https://b.example"))
	assert.False(t, p.allows("https://c.example"))
	assert.Empty(t, p.maxAge)
}
