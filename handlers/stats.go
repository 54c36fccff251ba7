package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"podagg/models"
)

// GetStats returns network-wide statistics over the full node set
func (h *Handler) GetStats(c echo.Context) error {
	stats, cacheHit, err := h.Aggregator.GetNetworkStats(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}

	if cacheHit {
		c.Response().Header().Set("X-Cache", "HIT")
	}
	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    stats,
	})
}
