package blog

import (
	"context"
	"strings"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
)

// Post belongs to a category and owns comments.
type Post struct {
	entity.Model

	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	CategoryID  entity.ID `db:"category_id" json:"categoryId"`

	Comments []*Comment `db:"-" json:"comments,omitempty"`
}

// NewPost creates a Post in category.
func NewPost(categoryID entity.ID, title, description string) *Post {
	return &Post{
		Model:       entity.NewModel(),
		Title:       title,
		Description: description,
		CategoryID:  categoryID,
	}
}

func (p *Post) TableName() string { return "posts" }

// Validate implements entity.Validatable.
func (p *Post) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.Title) == "" {
		return apperror.NewValidation("title is required").
			WithDetail("field", "title")
	}
	if entity.IsNilID(p.CategoryID) {
		return apperror.NewValidation("category is required").
			WithDetail("field", "categoryId")
	}
	return nil
}

// LoadRelations implements entity.SoftDeletable.
func (p *Post) LoadRelations(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Load(ctx, p, RelationComments)
}

// OnSoftDelete implements entity.SoftDeletable.
func (p *Post) OnSoftDelete(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Remove(ctx, entity.Entities(p.Comments)...)
}
