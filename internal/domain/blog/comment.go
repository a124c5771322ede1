package blog

import (
	"context"
	"strings"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
)

// Comment is a leaf: it has no dependents.
type Comment struct {
	entity.Model

	Content string    `db:"content" json:"content"`
	PostID  entity.ID `db:"post_id" json:"postId"`
}

// NewComment creates a Comment on post.
func NewComment(postID entity.ID, content string) *Comment {
	return &Comment{Model: entity.NewModel(), Content: content, PostID: postID}
}

func (c *Comment) TableName() string { return "comments" }

// Validate implements entity.Validatable.
func (c *Comment) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Content) == "" {
		return apperror.NewValidation("content is required").
			WithDetail("field", "content")
	}
	if entity.IsNilID(c.PostID) {
		return apperror.NewValidation("post is required").
			WithDetail("field", "postId")
	}
	return nil
}

func (c *Comment) LoadRelations(context.Context, entity.UnitOfWork) error { return nil }

func (c *Comment) OnSoftDelete(context.Context, entity.UnitOfWork) error { return nil }
