package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"podagg/models"
)

// GetHealth returns OK
func (h *Handler) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus returns backend status
func (h *Handler) GetStatus(c echo.Context) error {
	status := map[string]interface{}{
		"status":       "running",
		"startedAt":    h.StartedAt.UTC().Format(time.RFC3339),
		"uptime":       time.Since(h.StartedAt).Round(time.Second).String(),
		"upstream":     h.Cfg.UpstreamAddress(),
		"cacheMode":    string(h.Cache.GetCacheMode()),
		"cacheEnabled": h.Cache.Responses.Enabled(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    status,
	})
}
