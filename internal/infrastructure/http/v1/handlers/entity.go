// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/domain"
	"softdeletes/internal/infrastructure/http/v1/dto"
)

// EntityHandler provides generic HTTP handlers for one entity service.
type EntityHandler[T domain.Entity, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service *domain.Service[T]

	mapCreateDTO func(req CreateDTO) T
	mapUpdateDTO func(req UpdateDTO, existing T)
	versionOf    func(req UpdateDTO) int
	mapToDTO     func(e T) any

	expand       func(ctx context.Context, e T) error
	filterParams map[string]string
}

// EntityHandlerConfig configures the entity handler.
type EntityHandlerConfig[T domain.Entity, CreateDTO any, UpdateDTO any] struct {
	Service      *domain.Service[T]
	MapCreateDTO func(req CreateDTO) T
	MapUpdateDTO func(req UpdateDTO, existing T)

	// VersionOf returns the version the client expects; 0 skips the check.
	VersionOf func(req UpdateDTO) int
	MapToDTO  func(e T) any

	// Expand loads what Get returns along with the entity. Optional.
	Expand func(ctx context.Context, e T) error

	// FilterParams maps ID query parameters of List to columns,
	// e.g. "categoryId" -> "category_id".
	FilterParams map[string]string
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler[T domain.Entity, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg EntityHandlerConfig[T, CreateDTO, UpdateDTO],
) *EntityHandler[T, CreateDTO, UpdateDTO] {
	return &EntityHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
		versionOf:    cfg.VersionOf,
		mapToDTO:     cfg.MapToDTO,
		expand:       cfg.Expand,
		filterParams: cfg.FilterParams,
	}
}

// List handles GET /{entity} - list with filtering and pagination.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", filter.OrderBy)
	filter.IncludeDeleted = h.ParseBoolQuery(c, "includeDeleted")

	for param, column := range h.filterParams {
		id, ok := h.ParseIDQuery(c, param)
		if !ok {
			return
		}
		if !entity.IsNilID(id) {
			if filter.Equals == nil {
				filter.Equals = make(map[string]any)
			}
			filter.Equals[column] = id
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = h.mapToDTO(item)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /{entity}/:id - get single entity.
// Soft-deleted entities are returned only with ?includeDeleted=true.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	e, err := h.service.Get(ctx, id, h.ParseBoolQuery(c, "includeDeleted"))
	if err != nil {
		h.Error(c, err)
		return
	}
	if h.expand != nil {
		if err := h.expand(ctx, e); err != nil {
			h.Error(c, err)
			return
		}
	}

	h.OK(c, h.mapToDTO(e))
}

// Create handles POST /{entity} - create new entity.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	e := h.mapCreateDTO(req)
	if err := h.service.Create(ctx, e); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, h.mapToDTO(e))
}

// Update handles PUT /{entity}/:id - update existing entity.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	version := 0
	if h.versionOf != nil {
		version = h.versionOf(req)
	}
	updated, err := h.service.Update(ctx, id, version, func(existing T) error {
		h.mapUpdateDTO(req, existing)
		return nil
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(updated))
}

// Delete handles DELETE /{entity}/:id.
// The entity and its dependents are soft-deleted; ?force=true deletes the
// row physically instead.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	mode := entity.Soft
	if h.ParseBoolQuery(c, "force") {
		mode = entity.Force
	}

	affected, err := h.service.Delete(ctx, id, mode)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.DeleteResponse{Affected: affected, Mode: mode.String()})
}

// Restore handles POST /{entity}/:id/restore - clear the deletion mark.
func (h *EntityHandler[T, CreateDTO, UpdateDTO]) Restore(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	restored, err := h.service.Restore(ctx, id)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(restored))
}
