// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := postgres.ApplySchema(ctx, pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}
	log.Info("schema applied")

	registry, err := blog.NewRegistry()
	if err != nil {
		log.Fatalw("failed to build entity registry", "error", err)
	}
	txManager := postgres.NewTxManager(pool)

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		size := envInt("SEED_CATEGORIES", 10)
		if err := seedDemoData(ctx, txManager, registry, size); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	if os.Getenv("SEED_SCENARIO") == "true" {
		if err := runScenario(ctx, txManager, registry, log); err != nil {
			log.Fatalw("scenario failed", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedDemoData bulk-loads categories, each with three posts of two comments.
// COPY bypasses the session, so timestamps are set here.
func seedDemoData(ctx context.Context, txManager *postgres.TxManager, registry *metadata.Registry, categories int) error {
	now := time.Now().UTC()
	stamp := func(m *entity.Model) {
		m.CreatedAt = now
		m.UpdatedAt = now
	}

	rows := make(map[string][]entity.Entity)
	for i := 1; i <= categories; i++ {
		c := blog.NewCategory(fmt.Sprintf("Category %d", i))
		stamp(&c.Model)
		rows[blog.EntityCategory] = append(rows[blog.EntityCategory], c)

		for j := 1; j <= 3; j++ {
			p := blog.NewPost(c.ID, fmt.Sprintf("Post %d.%d", i, j), "seeded")
			stamp(&p.Model)
			rows[blog.EntityPost] = append(rows[blog.EntityPost], p)

			for k := 1; k <= 2; k++ {
				cm := blog.NewComment(p.ID, fmt.Sprintf("Comment %d.%d.%d", i, j, k))
				stamp(&cm.Model)
				rows[blog.EntityComment] = append(rows[blog.EntityComment], cm)
			}
		}
	}

	loader := postgres.NewBulkLoader(txManager)
	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// Registry order puts parents before dependents.
		for _, def := range registry.List() {
			n, err := loader.CopyEntities(ctx, def.TableName, def.Columns, rows[def.Name])
			if err != nil {
				return fmt.Errorf("seed %s: %w", def.TableName, err)
			}
			logger.Info(ctx, "rows copied", "table", def.TableName, "rows", n)
		}
		return nil
	})
}

// runScenario creates a category with a post and a comment, soft-deletes the
// category and restores it, all through the audited session.
func runScenario(ctx context.Context, txManager *postgres.TxManager, registry *metadata.Registry, log *logger.Logger) error {
	auditLog, err := postgres.NewAuditLog(txManager)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	s := session.New(txManager, registry,
		session.WithAuditor(auditLog),
		session.WithLogger(log))

	category := blog.NewCategory("Scenario")
	post := blog.NewPost(category.ID, "Scenario post", "")
	comment := blog.NewComment(post.ID, "Scenario comment")
	if err := s.Add(category, post, comment); err != nil {
		return err
	}
	if _, err := s.Commit(ctx); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	if err := s.Remove(ctx, category); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	n, err := s.Commit(ctx)
	if err != nil {
		return fmt.Errorf("commit removal: %w", err)
	}
	log.Infow("category soft-deleted", "id", category.ID, "rows", n)

	restored, err := s.Restore(ctx, category)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	log.Infow("category restored", "id", category.ID, "rows", restored, "post_deleted", post.IsDeleted())

	history, err := auditLog.History(ctx, blog.EntityCategory, category.ID, 10)
	if err != nil {
		return err
	}
	for _, h := range history {
		log.Infow("audit", "action", h.Action, "at", h.CreatedAt)
	}
	return nil
}

func envInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}
