package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"podagg/config"
	"podagg/models"
	"podagg/services"
)

type Handler struct {
	Cfg        *config.Config
	Aggregator *services.DataAggregator
	Cache      *services.CacheService
	PRPC       *services.PRPCClient
	StartedAt  time.Time
}

func NewHandler(cfg *config.Config, aggregator *services.DataAggregator, cache *services.CacheService, prpc *services.PRPCClient) *Handler {
	return &Handler{
		Cfg:        cfg,
		Aggregator: aggregator,
		Cache:      cache,
		PRPC:       prpc,
		StartedAt:  time.Now(),
	}
}

// GetNodes godoc
// @Summary List enriched pNodes
// @Description Returns the filtered, sorted and paginated node list with network totals
// @Tags nodes
// @Produce json
// @Param limit query int false "Page size (1-1000)"
// @Param offset query int false "Records to skip (>= 0)"
// @Param status query string false "active, online, offline, public, private or all"
// @Param sortBy query string false "Sort field"
// @Param sortOrder query string false "asc or desc (default: desc)"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/nodes [get]
func (h *Handler) GetNodes(c echo.Context) error {
	res, err := h.Aggregator.Handle(c.Request().Context(), c.QueryParams())
	if err != nil {
		return h.writeError(c, err)
	}

	data := res.Data
	if data == nil {
		data = []models.EnrichedNode{}
	}

	return c.JSON(http.StatusOK, models.APIResponse{
		Success:  true,
		Data:     data,
		Metadata: &res.Metadata,
	})
}

// GetNode godoc
// @Summary Get a single node by pubkey
// @Tags nodes
// @Produce json
// @Param pubkey path string true "Node pubkey"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/nodes/{pubkey} [get]
func (h *Handler) GetNode(c echo.Context) error {
	node, cacheHit, err := h.Aggregator.GetNode(c.Request().Context(), c.Param("pubkey"))
	if err != nil {
		return h.writeError(c, err)
	}

	if cacheHit {
		c.Response().Header().Set("X-Cache", "HIT")
	}
	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    node,
	})
}
