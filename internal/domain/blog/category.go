// Package blog is the sample domain: categories own posts, posts own comments.
// Removing a category soft-deletes its posts, which soft-delete their comments.
package blog

import (
	"context"
	"strings"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
)

// Category groups posts.
type Category struct {
	entity.Model

	Name string `db:"name" json:"name"`

	// Posts is filled by LoadRelations (or an explicit load of RelationPosts).
	Posts []*Post `db:"-" json:"posts,omitempty"`
}

// NewCategory creates a Category with a generated ID.
func NewCategory(name string) *Category {
	return &Category{Model: entity.NewModel(), Name: name}
}

func (c *Category) TableName() string { return "categories" }

// Validate implements entity.Validatable.
func (c *Category) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if len(c.Name) > 200 {
		return apperror.NewValidation("name must be at most 200 characters").
			WithDetail("field", "name")
	}
	return nil
}

// LoadRelations implements entity.SoftDeletable.
func (c *Category) LoadRelations(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Load(ctx, c, RelationPosts)
}

// OnSoftDelete implements entity.SoftDeletable.
func (c *Category) OnSoftDelete(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Remove(ctx, entity.Entities(c.Posts)...)
}
