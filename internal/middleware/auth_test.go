package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"model-graphql/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(raw string) (string, error) {
	if raw == "explode" {
		return "", errors.New("clock unavailable")
	}
	id, ok := s[raw]
	if !ok {
		return "", auth.ErrInvalidToken
	}
	return id, nil
}

type boundUserKey struct{}

func bindForTest(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, boundUserKey{}, userID)
}

func newTokenAuthHandler(t *testing.T, seen *string, bound *bool) http.Handler {
	t.Helper()
	mw, err := TokenAuthMiddleware(TokenAuthConfig{
		Verifier: stubVerifier{"good": "user-1"},
		Bind:     bindForTest,
	})
	require.NoError(t, err)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen, *bound = r.Context().Value(boundUserKey{}).(string)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestTokenAuthMiddleware_AnonymousWithoutHeader(t *testing.T) {
	var seen string
	var bound bool
	handler := newTokenAuthHandler(t, &seen, &bound)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bound)
	assert.Empty(t, seen)
}

func TestTokenAuthMiddleware_ValidToken(t *testing.T) {
	var seen string
	var bound bool
	mw, err := TokenAuthMiddleware(TokenAuthConfig{Verifier: stubVerifier{"good": "user-1"}, Bind: bindForTest})
	require.NoError(t, err)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, bound = r.Context().Value(boundUserKey{}).(string)
		ac, ok := AuthFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, AuthContext{Subject: "user-1", Method: "token"}, ac)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bound)
	assert.Equal(t, "user-1", seen)
}

func TestTokenAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"unknown token", "Bearer forged", "invalid token"},
		{"verifier failure", "Bearer explode", "invalid token"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "malformed authorization header"},
		{"missing token", "Bearer ", "malformed authorization header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			var bound bool
			handler := newTokenAuthHandler(t, &seen, &bound)

			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, rec.Body.String())
			assert.False(t, bound)
		})
	}
}

func TestTokenAuthMiddleware_RequiresDependencies(t *testing.T) {
	_, err := TokenAuthMiddleware(TokenAuthConfig{Bind: bindForTest})
	assert.Error(t, err)
	_, err = TokenAuthMiddleware(TokenAuthConfig{Verifier: stubVerifier{}})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  bearer   abc "))
	assert.Empty(t, bearerToken("Token abc"))
	assert.Empty(t, bearerToken("Bearer"))
}
