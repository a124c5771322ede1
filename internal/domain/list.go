// Package domain provides the generic entity service used by every domain package.
package domain

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres/session"
)

// --- Filter & Pagination ---

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches the service's search column (case-insensitive substring)
	Search string

	// IDs filters by specific IDs
	IDs []entity.ID

	// Equals filters by exact column values (e.g. "category_id")
	Equals map[string]any

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// OrderBy specifies sorting (e.g., "name", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

const maxLimit = 500

// query translates f for the session. Columns in OrderBy and Equals must be
// known to allowed, anything else is dropped.
func (f ListFilter) query(searchColumn string, allowed func(col string) bool) session.Query {
	var where squirrel.And
	if f.Search != "" && searchColumn != "" {
		where = append(where, squirrel.ILike{searchColumn: "%" + f.Search + "%"})
	}
	if len(f.IDs) > 0 {
		where = append(where, squirrel.Eq{"id": f.IDs})
	}
	for col, v := range f.Equals {
		if allowed(col) {
			where = append(where, squirrel.Eq{col: v})
		}
	}

	q := session.Query{IncludeDeleted: f.IncludeDeleted}
	if len(where) > 0 {
		q.Where = where
	}

	if f.OrderBy != "" {
		col, dir := strings.TrimPrefix(f.OrderBy, "-"), "ASC"
		if strings.HasPrefix(f.OrderBy, "-") {
			dir = "DESC"
		}
		if allowed(col) {
			q.OrderBy = []string{col + " " + dir}
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > maxLimit {
		limit = DefaultListFilter().Limit
	}
	q.Limit = uint64(limit)
	if f.Offset > 0 {
		q.Offset = uint64(f.Offset)
	}
	return q
}
