// Package main is the entry point for the blog API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"softdeletes/internal/domain/blog"
	v1 "softdeletes/internal/infrastructure/http/v1"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/pkg/logger"
)

const version = "0.1.0"

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting server", "version", version)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if n := getEnvInt("DB_MAX_CONNS", 0); n > 0 {
		poolCfg.MaxConns = int32(n)
	}
	if n := getEnvInt("DB_MIN_CONNS", -1); n >= 0 {
		poolCfg.MinConns = int32(n)
	}
	poolCfg.MaxConnIdleTime = getEnvDuration("DB_MAX_CONN_IDLE_TIME", poolCfg.MaxConnIdleTime)

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Infow("database connection established", "max_conns", poolCfg.MaxConns)

	txManager := postgres.NewTxManager(pool)

	// --- Entity registry ---
	// Built once before serving; read-only afterwards.
	registry, err := blog.NewRegistry()
	if err != nil {
		log.Fatalw("failed to build entity registry", "error", err)
	}
	log.Infow("entity registry initialized", "entities", len(registry.List()))

	// --- Audit ---
	var auditor session.Auditor
	if getEnv("AUDIT_ENABLED", "true") == "true" {
		auditLog, err := postgres.NewAuditLog(txManager,
			postgres.WithCompressThreshold(getEnvInt("AUDIT_COMPRESS_THRESHOLD", 10*1024)))
		if err != nil {
			log.Fatalw("failed to create audit log", "error", err)
		}
		defer auditLog.Close()
		auditor = auditLog
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Database: pool,
		Engine:   txManager,
		Registry: registry,
		Auditor:  auditor,
		Services: blog.NewServices(),
		Logger:   log,
		Version:  version,
		Debug:    getEnv("APP_ENV", "development") == "development",
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	pool.LogStats(ctx)

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
