package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/infrastructure/http/v1/dto"
	"softdeletes/internal/metadata"
)

// MetadataHandler exposes the entity registry.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
	}
}

// ListEntities returns all registered entities in registration order.
// GET /api/v1/meta
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	defs := h.registry.List()
	items := make([]dto.EntityMetaResponse, len(defs))
	for i, def := range defs {
		items[i] = dto.FromEntityDef(def)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetEntity returns the metadata for a specific entity.
// GET /api/v1/meta/:name
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity type", name))
		return
	}
	c.JSON(http.StatusOK, dto.FromEntityDef(def))
}
