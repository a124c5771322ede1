package blog

import (
	"fmt"

	"softdeletes/internal/metadata"
)

// Entity names.
const (
	EntityCategory = "category"
	EntityPost     = "post"
	EntityComment  = "comment"
)

// Relation names.
const (
	RelationPosts    = "posts"
	RelationComments = "comments"
)

// Definitions returns the descriptors, parents first.
func Definitions() []*metadata.EntityDef {
	return []*metadata.EntityDef{
		metadata.Define(EntityCategory, func() *Category { return &Category{} }).WithRelations(
			metadata.HasMany(RelationPosts, EntityPost, "category_id",
				func(c *Category) *[]*Post { return &c.Posts }),
		),
		metadata.Define(EntityPost, func() *Post { return &Post{} }).WithRelations(
			metadata.HasMany(RelationComments, EntityComment, "post_id",
				func(p *Post) *[]*Comment { return &p.Comments }),
		),
		metadata.Define(EntityComment, func() *Comment { return &Comment{} }),
	}
}

// Register adds the blog entities to r and checks their relations.
func Register(r *metadata.Registry) error {
	if err := r.Register(Definitions()...); err != nil {
		return fmt.Errorf("register blog entities: %w", err)
	}
	return r.Validate()
}

// NewRegistry returns a registry with the blog entities and the soft-delete
// filter installed.
func NewRegistry() (*metadata.Registry, error) {
	r := metadata.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	metadata.InstallSoftDeleteFilter(r)
	return r, nil
}
