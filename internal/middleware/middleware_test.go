package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videotube/backend/internal/logging"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(token string) (string, error) {
	if userID, ok := s[token]; ok {
		return userID, nil
	}
	return "", errors.New("bad token")
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(stubAuthenticator{"good": "user-1"})(http.HandlerFunc(echoUser))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"}) }, status: http.StatusOK, body: "user-1"},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, status: http.StatusOK, body: "user-1"},
		{name: "lowercase scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer good") }, status: http.StatusOK, body: "user-1"},
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic good") }, status: http.StatusUnauthorized},
		{name: "rejected", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") }, status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "UNAUTHENTICATED", body["code"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	handler := OptionalAuth(stubAuthenticator{"good": "user-1"})(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequestLoggerHonoursRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestRequestLoggerGeneratesIDAndRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.(*ipRateLimiter).WithNowFunc(func() time.Time { return now })

	handler := RateLimit(limiter, "login")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.1"))
	assert.Equal(t, http.StatusNoContent, call("203.0.113.2"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}

func TestCORSAllowsCredentials(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
