package dto

import (
	"softdeletes/internal/core/entity"
	"softdeletes/internal/domain/blog"
)

// --- Category ---

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// ToEntity converts DTO to domain entity.
func (r CreateCategoryRequest) ToEntity() *blog.Category {
	return blog.NewCategory(r.Name)
}

// UpdateCategoryRequest is the request body for updating a category.
type UpdateCategoryRequest struct {
	Name    string `json:"name" binding:"required"`
	Version int    `json:"version"`
}

// ApplyTo applies update DTO to existing entity.
func (r UpdateCategoryRequest) ApplyTo(c *blog.Category) {
	c.Name = r.Name
}

// CategoryResponse is the API representation of a category.
type CategoryResponse struct {
	BaseResponse
	Name  string         `json:"name"`
	Posts []PostResponse `json:"posts,omitempty"`
}

// FromCategory creates CategoryResponse from a category and its loaded posts.
func FromCategory(c *blog.Category) CategoryResponse {
	resp := CategoryResponse{
		BaseResponse: FromModel(c.Model),
		Name:         c.Name,
	}
	for _, p := range c.Posts {
		resp.Posts = append(resp.Posts, FromPost(p))
	}
	return resp
}

// --- Post ---

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	CategoryID  entity.ID `json:"categoryId"`
}

// ToEntity converts DTO to domain entity.
func (r CreatePostRequest) ToEntity() *blog.Post {
	return blog.NewPost(r.CategoryID, r.Title, r.Description)
}

// UpdatePostRequest is the request body for updating a post.
// A post may be moved to another category.
type UpdatePostRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	CategoryID  entity.ID `json:"categoryId"`
	Version     int       `json:"version"`
}

// ApplyTo applies update DTO to existing entity.
func (r UpdatePostRequest) ApplyTo(p *blog.Post) {
	p.Title = r.Title
	p.Description = r.Description
	if !entity.IsNilID(r.CategoryID) {
		p.CategoryID = r.CategoryID
	}
}

// PostResponse is the API representation of a post.
type PostResponse struct {
	BaseResponse
	Title       string            `json:"title"`
	Description string            `json:"description"`
	CategoryID  string            `json:"categoryId"`
	Comments    []CommentResponse `json:"comments,omitempty"`
}

// FromPost creates PostResponse from a post and its loaded comments.
func FromPost(p *blog.Post) PostResponse {
	resp := PostResponse{
		BaseResponse: FromModel(p.Model),
		Title:        p.Title,
		Description:  p.Description,
		CategoryID:   p.CategoryID.String(),
	}
	for _, c := range p.Comments {
		resp.Comments = append(resp.Comments, FromComment(c))
	}
	return resp
}

// --- Comment ---

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content string    `json:"content" binding:"required"`
	PostID  entity.ID `json:"postId"`
}

// ToEntity converts DTO to domain entity.
func (r CreateCommentRequest) ToEntity() *blog.Comment {
	return blog.NewComment(r.PostID, r.Content)
}

// UpdateCommentRequest is the request body for updating a comment.
type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
	Version int    `json:"version"`
}

// ApplyTo applies update DTO to existing entity.
func (r UpdateCommentRequest) ApplyTo(c *blog.Comment) {
	c.Content = r.Content
}

// CommentResponse is the API representation of a comment.
type CommentResponse struct {
	BaseResponse
	Content string `json:"content"`
	PostID  string `json:"postId"`
}

// FromComment creates CommentResponse from entity.
func FromComment(c *blog.Comment) CommentResponse {
	return CommentResponse{
		BaseResponse: FromModel(c.Model),
		Content:      c.Content,
		PostID:       c.PostID.String(),
	}
}
