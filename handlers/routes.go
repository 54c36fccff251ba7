package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts every endpoint on e. metrics may be nil.
func RegisterRoutes(e *echo.Echo, h *Handler, cacheHandlers *CacheHandlers, metrics http.Handler) {
	// System
	e.GET("/health", h.GetHealth)
	e.GET("/cache/status", cacheHandlers.GetCacheStatus)
	e.POST("/cache/clear", cacheHandlers.ClearCache)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	api := e.Group("/api")

	api.GET("/status", h.GetStatus)
	api.GET("/nodes", h.GetNodes)
	api.GET("/nodes/:pubkey", h.GetNode)
	api.GET("/stats", h.GetStats)
	api.GET("/upstream/version", h.GetUpstreamVersion)
}
