package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerMiddlewareWritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(LoggerMiddlewareTo(&buf))
	e.GET("/api/nodes", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/nodes?limit=10", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	line := buf.String()
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] GET /api/nodes\?limit=10 -> 200 OK \(\d+ms\) from 203\.0\.113\.7\n$`, line)
}

func TestLoggerMiddlewareRendersHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(LoggerMiddlewareTo(&buf))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "-> 418 I'm a teapot")
}

func TestRecoverMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RecoverMiddleware())
	e.GET("/panic", func(c echo.Context) error {
		panic("nil map")
	})

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard_by_default", nil, "https://dash.example", "*"},
		{"listed_origin", []string{"https://dash.example"}, "https://dash.example", "https://dash.example"},
		{"unlisted_origin", []string{"https://dash.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(CORSMiddleware(tt.allowed))
			e.GET("/api/nodes", func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}
