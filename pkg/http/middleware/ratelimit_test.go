package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiter_PerKeyBudget(t *testing.T) {
	l := NewKeyedLimiter(1, 2, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "other keys have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"), "one token refilled after a second")
}

func TestKeyedLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_Middleware(t *testing.T) {
	e := echo.New()
	l := NewKeyedLimiter(0.001, 1, time.Minute)
	e.Use(RateLimit(l, "/healthz"))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/risk", ok)
	e.GET("/healthz", ok)

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/api/risk").Code)
	rec := do("/api/risk")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("/healthz").Code)
	}
}
