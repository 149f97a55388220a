package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

func serve(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.1.1.1:4000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerCORSToggle(t *testing.T) {
	origin := map[string]string{echo.HeaderOrigin: "http://dashboard.local"}

	on := NewServer(pingHandler{}, WithMetrics(prometheus.NewRegistry(), nil, ""))
	rec := serve(on, http.MethodGet, "/api/ping", origin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	off := NewServer(pingHandler{}, WithMetrics(prometheus.NewRegistry(), nil, ""), WithCORS(false))
	rec = serve(off, http.MethodGet, "/api/ping", origin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerRateLimit(t *testing.T) {
	s := NewServer(pingHandler{}, WithMetrics(prometheus.NewRegistry(), nil, ""), WithRateLimit(0.001, 1))

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, http.MethodGet, "/api/ping", nil).Code)
}
