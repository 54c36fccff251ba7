package middleware

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
)

// RecoverMiddleware turns a handler panic into a 500 response.
func RecoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Recovered from panic: %v", r)
					err = fmt.Errorf("internal server error: %v", r)
				}
			}()
			return next(c)
		}
	}
}
