package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// Testimonials stores quotes, newest first.
type Testimonials struct {
	c collection[models.Testimonial]
}

func newTestimonials(coll docstore.Collection, cfg options) *Testimonials {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &Testimonials{c: newCollection(coll, sort, cfg, mapTestimonial)}
}

func mapTestimonial(r *docReader) models.Testimonial {
	return models.Testimonial{
		ID:        r.doc.ID,
		Quote:     r.str("quote"),
		Author:    r.str("author"),
		Role:      r.str("role"),
		ImageURL:  r.str("imageUrl"),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
}

func (t *Testimonials) List(ctx context.Context) ([]models.Testimonial, error) {
	return t.c.list(ctx)
}

func (t *Testimonials) Get(ctx context.Context, id string) (models.Testimonial, error) {
	return t.c.get(ctx, id)
}

func (t *Testimonials) Create(ctx context.Context, in models.TestimonialInput) (models.Testimonial, error) {
	fields := fieldSet{"quote": in.Quote, "author": in.Author}
	fields.setNonEmpty("role", in.Role)
	fields.setNonEmpty("imageUrl", in.ImageURL)
	return t.c.create(ctx, fields)
}

func (t *Testimonials) Update(ctx context.Context, id string, patch models.TestimonialPatch) (models.Testimonial, error) {
	fields := fieldSet{}
	fields.setString("quote", patch.Quote)
	fields.setString("author", patch.Author)
	fields.setString("role", patch.Role)
	fields.setString("imageUrl", patch.ImageURL)
	return t.c.update(ctx, id, fields)
}

func (t *Testimonials) Delete(ctx context.Context, id string) error {
	return t.c.remove(ctx, id)
}
