package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/missing/:id", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("Item %s not found", c.Param("id")))
	})
	e.GET("/boom", func(echo.Context) error { panic("boom") })
}

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewServer([]Handler{routes{}}, WithMetrics(reg, reg, 0), WithCORS(true, []string{"http://localhost:3000"})), reg
}

func TestServerAppErrorStatusAndEnvelope(t *testing.T) {
	s, reg := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/42", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound || len(body.Data) != 1 || body.Data[0].Message != "Item 42 not found" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if n := testutil.CollectAndCount(reg, "tft_http_requests_total"); n != 1 {
		t.Fatalf("expected one request series, got %d", n)
	}
}

func TestServerRecoversPanics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestServerCORSAllowedOrigin(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/missing/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/missing/1", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin must not be allowed")
	}
}

func TestServerServesMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/1", nil))
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tft_http_requests_total") {
		t.Fatalf("metrics endpoint missing http series")
	}
}
