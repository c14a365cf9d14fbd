package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// Posts stores highlighted posts, newest first.
type Posts struct {
	c collection[models.Post]
}

func newPosts(coll docstore.Collection, cfg options) *Posts {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &Posts{c: newCollection(coll, sort, cfg, mapPost)}
}

func mapPost(r *docReader) models.Post {
	return models.Post{
		ID:        r.doc.ID,
		Title:     r.str("title"),
		Content:   r.str("content"),
		Author:    r.str("author"),
		ImageURL:  r.str("imageUrl"),
		PostURL:   r.str("postUrl"),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
}

func (p *Posts) List(ctx context.Context) ([]models.Post, error) {
	return p.c.list(ctx)
}

// Latest returns at most n posts, newest first.
func (p *Posts) Latest(ctx context.Context, n int) ([]models.Post, error) {
	q := p.c.sort
	q.Limit = n
	return p.c.query(ctx, q)
}

func (p *Posts) Get(ctx context.Context, id string) (models.Post, error) {
	return p.c.get(ctx, id)
}

func (p *Posts) Create(ctx context.Context, in models.PostInput) (models.Post, error) {
	fields := fieldSet{"title": in.Title, "content": in.Content}
	fields.setNonEmpty("author", in.Author)
	fields.setNonEmpty("imageUrl", in.ImageURL)
	fields.setNonEmpty("postUrl", in.PostURL)
	return p.c.create(ctx, fields)
}

func (p *Posts) Update(ctx context.Context, id string, patch models.PostPatch) (models.Post, error) {
	fields := fieldSet{}
	fields.setString("title", patch.Title)
	fields.setString("content", patch.Content)
	fields.setString("author", patch.Author)
	fields.setString("imageUrl", patch.ImageURL)
	fields.setString("postUrl", patch.PostURL)
	return p.c.update(ctx, id, fields)
}

func (p *Posts) Delete(ctx context.Context, id string) error {
	return p.c.remove(ctx, id)
}
