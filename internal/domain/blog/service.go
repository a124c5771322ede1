package blog

import (
	"context"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/domain"
	"softdeletes/internal/infrastructure/storage/postgres/session"
)

// Services bundles the blog entity services.
type Services struct {
	Categories *domain.Service[*Category]
	Posts      *domain.Service[*Post]
	Comments   *domain.Service[*Comment]
}

// NewServices creates the services and registers the blog rules: posts and
// comments can only be created under, or restored into, a live parent.
func NewServices() *Services {
	s := &Services{
		Categories: domain.NewService[*Category](domain.ServiceConfig{EntityName: EntityCategory, SearchColumn: "name"}),
		Posts:      domain.NewService[*Post](domain.ServiceConfig{EntityName: EntityPost, SearchColumn: "title"}),
		Comments:   domain.NewService[*Comment](domain.ServiceConfig{EntityName: EntityComment, SearchColumn: "content"}),
	}

	s.Posts.Hooks().OnBeforeCreate(checkPostParent)
	s.Posts.Hooks().OnBeforeUpdate(checkPostParent)
	s.Posts.Hooks().OnBeforeRestore(checkPostParent)

	s.Comments.Hooks().OnBeforeCreate(checkCommentParent)
	s.Comments.Hooks().OnBeforeUpdate(checkCommentParent)
	s.Comments.Hooks().OnBeforeRestore(checkCommentParent)

	return s
}

func checkPostParent(ctx context.Context, p *Post) error {
	_, err := session.Find[*Category](ctx, session.MustFromContext(ctx), p.CategoryID)
	if apperror.IsNotFound(err) {
		return apperror.NewValidation("category does not exist or is deleted").
			WithDetail("field", "categoryId").
			WithDetail("categoryId", p.CategoryID.String())
	}
	return err
}

func checkCommentParent(ctx context.Context, c *Comment) error {
	_, err := session.Find[*Post](ctx, session.MustFromContext(ctx), c.PostID)
	if apperror.IsNotFound(err) {
		return apperror.NewValidation("post does not exist or is deleted").
			WithDetail("field", "postId").
			WithDetail("postId", c.PostID.String())
	}
	return err
}
