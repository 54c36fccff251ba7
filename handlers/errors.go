package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"podagg/models"
	"podagg/services"
)

const codeMethodNotAllowed = "METHOD_NOT_ALLOWED"

func (h *Handler) writeError(c echo.Context, err error) error {
	var ae *services.AggregationError
	if !errors.As(err, &ae) {
		ae = services.ClassifyError(err)
	}
	return writeEnvelope(c, ae, h.Cfg.Server.DebugErrors)
}

func writeEnvelope(c echo.Context, ae *services.AggregationError, debug bool) error {
	apiErr := &models.APIError{
		Code:    ae.Code,
		Message: ae.Message,
	}
	if debug {
		apiErr.Details = ae.Details()
	}
	return c.JSON(ae.Status, models.APIResponse{
		Success: false,
		Error:   apiErr,
	})
}

// ErrorHandler renders framework errors (unknown route, wrong method,
// recovered panics) in the same envelope as pipeline errors.
func ErrorHandler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ae *services.AggregationError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
		case errors.As(err, &he):
			ae = &services.AggregationError{
				Code:      codeForStatus(he.Code),
				Message:   fmt.Sprint(he.Message),
				Status:    he.Code,
				Cause:     err,
				Timestamp: time.Now(),
			}
		default:
			ae = services.ClassifyError(err)
		}

		if ae.Status >= http.StatusInternalServerError {
			log.Printf("❌ %s %s failed: %v", c.Request().Method, c.Request().URL.Path, err)
		}

		if c.Request().Method == http.MethodHead {
			if werr := c.NoContent(ae.Status); werr != nil {
				log.Printf("Failed to write error response: %v", werr)
			}
			return
		}
		if werr := writeEnvelope(c, ae, debug); werr != nil {
			log.Printf("Failed to write error response: %v", werr)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return services.CodeNotFound
	case http.StatusMethodNotAllowed:
		return codeMethodNotAllowed
	case http.StatusBadRequest:
		return services.CodeValidation
	default:
		return services.CodeInternal
	}
}
