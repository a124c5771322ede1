package v1

import (
	"github.com/gin-gonic/gin"
)

// EntityRouteHandler defines the interface for entity handlers.
type EntityRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Restore(c *gin.Context)
}

// RegisterEntityRoutes registers the CRUD and restore routes of an entity.
//
// Usage:
//
//	handler := handlers.NewPostHandler(base, services)
//	RegisterEntityRoutes(api.Group("/posts"), handler)
func RegisterEntityRoutes(group *gin.RouterGroup, handler EntityRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/restore", handler.Restore)
}
