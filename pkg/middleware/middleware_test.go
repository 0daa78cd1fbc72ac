package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
})

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	defer rl.Shutdown()
	h := rl.Middleware(okHandler)

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/payment/success", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1:1000"))
	assert.Equal(t, http.StatusOK, call("198.51.100.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("198.51.100.1:1002"))
	// another client has its own bucket
	assert.Equal(t, http.StatusOK, call("198.51.100.2:1000"))
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, func(r *http.Request) string { return "fixed" })
	defer rl.Shutdown()
	rl.getLimiter("fixed")

	assert.Equal(t, 0, rl.cleanup(time.Now()))
	assert.Equal(t, 1, rl.cleanup(time.Now().Add(10*time.Minute)))
	rl.Shutdown()
}

func TestGzipHandler(t *testing.T) {
	h := GzipHandler(zap.NewNop(), "/metrics")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/billing/payment/history", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/billing/subscription/status", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
