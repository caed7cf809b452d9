package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/handler"
)

const testSecret = "middleware-secret"

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.GenerateToken(userID, auth.RoleUser, testSecret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken(userID, auth.RoleUser, "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "MISSING_TOKEN"},
		{"wrong scheme", "Basic abc", "INVALID_TOKEN"},
		{"empty bearer", "Bearer ", "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreign, "INVALID_TOKEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Auth(testSecret)(http.HandlerFunc(okHandler)).ServeHTTP(rec, r)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
		})
	}

	t.Run("valid token", func(t *testing.T) {
		var got uuid.UUID
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = auth.UserIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+valid)
		rec := httptest.NewRecorder()
		Auth(testSecret)(next).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, userID, got)
	})
}

func withClaims(r *http.Request, role auth.Role) *http.Request {
	claims := &auth.Claims{UserID: uuid.New(), Role: role}
	return r.WithContext(auth.ContextWithClaims(r.Context(), claims))
}

func TestRequireAdmin(t *testing.T) {
	authority := auth.NewAuthority()

	var granted *auth.Capability
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		granted = auth.CapabilityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mw := RequireAdmin(authority)(next)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, withClaims(httptest.NewRequest(http.MethodPost, "/", nil), auth.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, granted)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, withClaims(httptest.NewRequest(http.MethodPost, "/", nil), auth.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, granted)
	assert.NoError(t, granted.Verify(authority))
}

func TestIdempotency(t *testing.T) {
	var gotKey string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = handler.IdempotencyKeyFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("GET passes without a key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Idempotency(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("POST requires a key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Idempotency(next).ServeHTTP(rec, withClaims(httptest.NewRequest(http.MethodPost, "/", nil), auth.RoleUser))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", errorCode(t, rec))
	})

	t.Run("oversized key", func(t *testing.T) {
		r := withClaims(httptest.NewRequest(http.MethodPost, "/", nil), auth.RoleUser)
		r.Header.Set("Idempotency-Key", string(bytes.Repeat([]byte("k"), maxIdempotencyKeyLen+1)))
		rec := httptest.NewRecorder()
		Idempotency(next).ServeHTTP(rec, r)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))
	})

	t.Run("key is scoped to the caller", func(t *testing.T) {
		claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleUser}
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r = r.WithContext(auth.ContextWithClaims(r.Context(), claims))
		r.Header.Set("Idempotency-Key", "abc")

		rec := httptest.NewRecorder()
		Idempotency(next).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, claims.UserID.String()+":abc", gotKey)
	})
}

type counter struct{ n atomic.Int64 }

func (c *counter) Inc() { c.n.Add(1) }

func TestRateLimiter(t *testing.T) {
	rejected := &counter{}
	rl := NewRateLimiter(1, 2, rejected)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Handler(http.HandlerFunc(okHandler))
	send := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1000"), "buckets are per client")
	assert.Equal(t, int64(1), rejected.n.Load())

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1003"), "bucket refills")
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(time.Minute)
	rl.allow("b")

	assert.Equal(t, 1, rl.Evict(30*time.Second))
	assert.Len(t, rl.clients, 1)
}

func TestRateLimiter_DisabledIsPassThrough(t *testing.T) {
	rl := NewRateLimiter(0, 0, nil)
	require.Nil(t, rl)

	rec := httptest.NewRecorder()
	rl.Handler(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type observed struct {
	method string
	status int
}

type fakeObserver struct{ calls []observed }

func (f *fakeObserver) ObserveHTTP(method string, status int, _ time.Duration) {
	f.calls = append(f.calls, observed{method, status})
}

func TestLoggingTracingRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	obs := &fakeObserver{}

	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Tracing(Logging(logger, obs)(Recovery(panicky)))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	r.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	require.Len(t, obs.calls, 1)
	assert.Equal(t, observed{http.MethodPost, http.StatusInternalServerError}, obs.calls[0])
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLogging_SkipsHealth(t *testing.T) {
	obs := &fakeObserver{}
	h := Logging(slog.Default(), obs)(http.HandlerFunc(okHandler))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Empty(t, obs.calls)
}

func TestTracing_ReplacesOversizedID(t *testing.T) {
	var seen string
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", string(bytes.Repeat([]byte("x"), maxTraceIDLen+1)))
	h.ServeHTTP(httptest.NewRecorder(), r)

	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

