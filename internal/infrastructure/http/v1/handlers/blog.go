package handlers

import (
	"context"

	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/http/v1/dto"
	"softdeletes/internal/infrastructure/storage/postgres/session"
)

type (
	CategoryHandler = EntityHandler[*blog.Category, dto.CreateCategoryRequest, dto.UpdateCategoryRequest]
	PostHandler     = EntityHandler[*blog.Post, dto.CreatePostRequest, dto.UpdatePostRequest]
	CommentHandler  = EntityHandler[*blog.Comment, dto.CreateCommentRequest, dto.UpdateCommentRequest]
)

// NewCategoryHandler creates the category handler. Get includes the posts.
func NewCategoryHandler(base *BaseHandler, svc *blog.Services) *CategoryHandler {
	return NewEntityHandler(base, EntityHandlerConfig[*blog.Category, dto.CreateCategoryRequest, dto.UpdateCategoryRequest]{
		Service:      svc.Categories,
		MapCreateDTO: dto.CreateCategoryRequest.ToEntity,
		MapUpdateDTO: func(req dto.UpdateCategoryRequest, c *blog.Category) { req.ApplyTo(c) },
		VersionOf:    func(req dto.UpdateCategoryRequest) int { return req.Version },
		MapToDTO:     func(c *blog.Category) any { return dto.FromCategory(c) },
		Expand: func(ctx context.Context, c *blog.Category) error {
			return session.MustFromContext(ctx).Load(ctx, c, blog.RelationPosts)
		},
	})
}

// NewPostHandler creates the post handler. Get includes the comments.
func NewPostHandler(base *BaseHandler, svc *blog.Services) *PostHandler {
	return NewEntityHandler(base, EntityHandlerConfig[*blog.Post, dto.CreatePostRequest, dto.UpdatePostRequest]{
		Service:      svc.Posts,
		MapCreateDTO: dto.CreatePostRequest.ToEntity,
		MapUpdateDTO: func(req dto.UpdatePostRequest, p *blog.Post) { req.ApplyTo(p) },
		VersionOf:    func(req dto.UpdatePostRequest) int { return req.Version },
		MapToDTO:     func(p *blog.Post) any { return dto.FromPost(p) },
		Expand: func(ctx context.Context, p *blog.Post) error {
			return session.MustFromContext(ctx).Load(ctx, p, blog.RelationComments)
		},
		FilterParams: map[string]string{"categoryId": "category_id"},
	})
}

// NewCommentHandler creates the comment handler.
func NewCommentHandler(base *BaseHandler, svc *blog.Services) *CommentHandler {
	return NewEntityHandler(base, EntityHandlerConfig[*blog.Comment, dto.CreateCommentRequest, dto.UpdateCommentRequest]{
		Service:      svc.Comments,
		MapCreateDTO: dto.CreateCommentRequest.ToEntity,
		MapUpdateDTO: func(req dto.UpdateCommentRequest, c *blog.Comment) { req.ApplyTo(c) },
		VersionOf:    func(req dto.UpdateCommentRequest) int { return req.Version },
		MapToDTO:     func(c *blog.Comment) any { return dto.FromComment(c) },
		FilterParams: map[string]string{"postId": "post_id"},
	})
}
