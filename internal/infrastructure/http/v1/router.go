// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/http/v1/handlers"
	"softdeletes/internal/infrastructure/http/v1/middleware"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Database is checked by the readiness probe (*postgres.Pool).
	Database handlers.DatabaseChecker

	// Engine runs the commits of request sessions (*postgres.TxManager).
	Engine session.Engine

	// Registry holds the entity descriptors with their query filters installed.
	Registry *metadata.Registry

	// Auditor records committed changes. Optional.
	Auditor session.Auditor

	// Services are the blog entity services.
	Services *blog.Services

	// Logger for request logging
	Logger *logger.Logger

	// Version is reported by /health/info.
	Version string

	// Debug enables gin debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Session(sessionFactory(cfg)))
	{
		registerBlogRoutes(v1, cfg)
		registerMetaRoutes(v1, cfg)
	}

	return router
}

func sessionFactory(cfg RouterConfig) middleware.SessionFactory {
	opts := []session.Option{session.WithLogger(cfg.Logger)}
	if cfg.Auditor != nil {
		opts = append(opts, session.WithAuditor(cfg.Auditor))
	}
	return func() *session.Session {
		return session.New(cfg.Engine, cfg.Registry, opts...)
	}
}

// registerBlogRoutes registers categories, posts and comments.
func registerBlogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()

	RegisterEntityRoutes(rg.Group("/categories"), handlers.NewCategoryHandler(base, cfg.Services))
	RegisterEntityRoutes(rg.Group("/posts"), handlers.NewPostHandler(base, cfg.Services))
	RegisterEntityRoutes(rg.Group("/comments"), handlers.NewCommentHandler(base, cfg.Services))
}

// registerMetaRoutes registers the entity metadata endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	h := handlers.NewMetadataHandler(handlers.NewBaseHandler(), cfg.Registry)
	meta := rg.Group("/meta")
	{
		meta.GET("", h.ListEntities)
		meta.GET("/:name", h.GetEntity)
	}
}
