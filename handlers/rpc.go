package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"podagg/models"
)

// GetUpstreamVersion asks the configured pRPC node for its version. It is a
// single attempt bounded by the fetch timeout.
func (h *Handler) GetUpstreamVersion(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.FetchTimeoutDuration())
	defer cancel()

	v, err := h.PRPC.GetVersion(ctx)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data: map[string]string{
			"upstream": h.PRPC.Address(),
			"version":  v.Version,
		},
	})
}
