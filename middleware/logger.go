package middleware

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

func LoggerMiddleware() echo.MiddlewareFunc {
	return LoggerMiddlewareTo(os.Stdout)
}

// LoggerMiddlewareTo writes one access line per request to out.
func LoggerMiddlewareTo(out io.Writer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			if err != nil {
				c.Error(err)
			}

			stop := time.Now()
			req := c.Request()
			res := c.Response()

			path := req.URL.Path
			if req.URL.RawQuery != "" {
				path += "?" + req.URL.RawQuery
			}
			status := res.Status

			// [2025-01-01 10:30:15] GET /api/nodes?limit=10 -> 200 OK (234ms) from 127.0.0.1
			fmt.Fprintf(out, "[%s] %s %s -> %d %s (%dms) from %s\n",
				stop.Format("2006-01-02 15:04:05"), req.Method, path,
				status, http.StatusText(status), stop.Sub(start).Milliseconds(), c.RealIP())

			return nil
		}
	}
}
