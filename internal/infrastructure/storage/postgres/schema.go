package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates the blog tables and the audit table if they are missing.
func ApplySchema(ctx context.Context, pool *Pool) error {
	// Multiple statements run in one Exec (simple protocol, no arguments).
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
