package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (entity.ID, bool) {
	return h.parseID(c, "id", c.Param("id"))
}

// ParseIDQuery parses an optional ID query parameter.
// The returned ID is nil when the parameter is absent.
func (h *BaseHandler) ParseIDQuery(c *gin.Context, key string) (entity.ID, bool) {
	val := c.Query(key)
	if val == "" {
		return entity.NilID, true
	}
	return h.parseID(c, key, val)
}

func (h *BaseHandler) parseID(c *gin.Context, key, val string) (entity.ID, bool) {
	parsed, err := entity.ParseID(val)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", key))
		return entity.NilID, false
	}
	return parsed, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseBoolQuery parses boolean query parameter; anything unparsable is false.
func (h *BaseHandler) ParseBoolQuery(c *gin.Context, key string) bool {
	parsed, _ := strconv.ParseBool(c.Query(key))
	return parsed
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}
