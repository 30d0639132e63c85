package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, status int, req *http.Request) (*httptest.ResponseRecorder, observer.LoggedEntry) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	entries := logs.All()
	require.Len(t, entries, 1)
	return w, entries[0]
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
	w, entry := serveLogged(t, http.StatusOK, req)

	fields := entry.ContextMap()
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/results", fields["path"])
	assert.EqualValues(t, 200, fields["status"])
	assert.Contains(t, fields, "duration_ms")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), fields["request_id"])
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			_, entry := serveLogged(t, tt.status, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestLoggingMiddleware_ClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:54321"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.9"}, "203.0.113.50"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			_, entry := serveLogged(t, http.StatusOK, req)
			assert.Equal(t, tt.want, entry.ContextMap()["client_ip"])
		})
	}
}

func TestLoggingMiddleware_ReusesIncomingRequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
