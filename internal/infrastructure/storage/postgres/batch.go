package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"softdeletes/internal/core/entity"
)

// BulkLoader inserts large row sets with the COPY protocol.
// It bypasses the persistence session: no stamping, no audit. Used by seeding.
type BulkLoader struct {
	txManager *TxManager
}

func NewBulkLoader(txManager *TxManager) *BulkLoader {
	return &BulkLoader{txManager: txManager}
}

// CopyEntities copies items into table using the given columns.
// Must run inside a transaction.
func (b *BulkLoader) CopyEntities(ctx context.Context, table string, columns []string, items []entity.Entity) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyEntities requires transaction context")
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, &entityCopySource{columns: columns, items: items, pos: -1})
	if err != nil {
		return n, MapError(err, table, "copy")
	}
	return n, nil
}

// entityCopySource implements pgx.CopyFromSource over a slice of entities.
type entityCopySource struct {
	columns []string
	items   []entity.Entity
	pos     int
}

func (s *entityCopySource) Next() bool {
	s.pos++
	return s.pos < len(s.items)
}

func (s *entityCopySource) Values() ([]any, error) {
	data := StructToMap(s.items[s.pos])
	values := make([]any, len(s.columns))
	for i, col := range s.columns {
		v, ok := data[col]
		if !ok {
			return nil, fmt.Errorf("%s has no column %q", s.items[s.pos].TableName(), col)
		}
		values[i] = v
	}
	return values, nil
}

func (s *entityCopySource) Err() error {
	return nil
}
