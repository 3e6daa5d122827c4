package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"model-graphql/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf})

	var seenID string
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = logging.GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seenID)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, len("short and stout"), entry["bytes"])
}

func TestLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	handler := LoggingMiddleware(logging.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
}

func TestStatusRecorderCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := newStatusRecorder(rec)
	sr.capture = true

	_, _ = sr.Write([]byte(`{"data":`))
	_, _ = sr.Write([]byte(`{}}`))
	sr.WriteHeader(http.StatusInternalServerError)
	sr.Flush()

	assert.Equal(t, http.StatusOK, sr.statusCode)
	assert.Equal(t, `{"data":{}}`, string(sr.body))
	assert.Equal(t, 11, sr.bytes)
	assert.True(t, rec.Flushed)
}
