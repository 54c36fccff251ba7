package handlers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"podagg/models"
	"podagg/services"
)

type CacheHandlers struct {
	cache *services.CacheService
}

func NewCacheHandlers(cache *services.CacheService) *CacheHandlers {
	return &CacheHandlers{
		cache: cache,
	}
}

// GetCacheStatus returns cache health and statistics
func (h *CacheHandlers) GetCacheStatus(c echo.Context) error {
	stats := h.cache.GetCacheStats(c.Request().Context())
	mode := h.cache.GetCacheMode()

	response := map[string]interface{}{
		"mode":    string(mode),
		"healthy": mode == services.CacheModeRedis,
		"stats":   stats,
	}

	return c.JSON(http.StatusOK, response)
}

// ClearCache clears all cached responses and geolocations (admin endpoint)
func (h *CacheHandlers) ClearCache(c echo.Context) error {
	removed, err := h.cache.ClearCache(c.Request().Context())
	if err != nil {
		log.Printf("⚠️  Cache clear incomplete: %v", err)
		return c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error: &models.APIError{
				Code:    services.CodeInternal,
				Message: err.Error(),
			},
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Cache cleared successfully",
		"removed": removed,
	})
}
