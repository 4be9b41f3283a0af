package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/response"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// ZoneHandler handles store lookup and maintenance of persisted zones.
type ZoneHandler struct {
	service *application.ZoneAdminService
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(service *application.ZoneAdminService) *ZoneHandler {
	return &ZoneHandler{service: service}
}

// RegisterRoutes registers store and zone routes.
func (h *ZoneHandler) RegisterRoutes(r *gin.RouterGroup) {
	stores := r.Group("/api/v1/stores")
	{
		stores.GET("/search", h.SearchStores)
		stores.GET("/resolve", h.ResolveStore)
		stores.GET("/:storeId/zones", h.ListStoreZones)
	}

	zones := r.Group("/api/v1/zones")
	{
		zones.PATCH("/:zoneId", h.UpdateZone)
		zones.DELETE("/:zoneId", h.DeleteZone)
	}
}

// SearchStores handles GET /api/v1/stores/search?q=.
func (h *ZoneHandler) SearchStores(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	response.Success(c, h.service.SearchStores(c.Request.Context(), c.Query("q"), limit))
}

// ResolveStore handles GET /api/v1/stores/resolve?q=.
func (h *ZoneHandler) ResolveStore(c *gin.Context) {
	response.Success(c, h.service.ResolveStore(c.Request.Context(), c.Query("q")))
}

// ListStoreZones handles GET /api/v1/stores/:storeId/zones.
func (h *ZoneHandler) ListStoreZones(c *gin.Context) {
	zones, err := h.service.ListStoreZones(c.Request.Context(), c.Param("storeId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, zones)
}

// UpdateZone handles PATCH /api/v1/zones/:zoneId.
func (h *ZoneHandler) UpdateZone(c *gin.Context) {
	var patch zone.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateZone(c.Request.Context(), c.Param("zoneId"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteZone handles DELETE /api/v1/zones/:zoneId.
func (h *ZoneHandler) DeleteZone(c *gin.Context) {
	if err := h.service.DeleteZone(c.Request.Context(), c.Param("zoneId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
