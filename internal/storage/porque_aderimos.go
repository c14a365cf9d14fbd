package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// PorqueAderimos stores the "porque aderimos" entries, newest first.
type PorqueAderimos struct {
	c collection[models.PorqueAderimosItem]
}

func newPorqueAderimos(coll docstore.Collection, cfg options) *PorqueAderimos {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &PorqueAderimos{c: newCollection(coll, sort, cfg, mapPorqueAderimos)}
}

func mapPorqueAderimos(r *docReader) models.PorqueAderimosItem {
	return models.PorqueAderimosItem{
		ID:        r.doc.ID,
		Titulo:    r.str("titulo"),
		Conteudo:  r.str("conteudo"),
		URL:       r.str("url"),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
}

func (p *PorqueAderimos) List(ctx context.Context) ([]models.PorqueAderimosItem, error) {
	return p.c.list(ctx)
}

func (p *PorqueAderimos) Get(ctx context.Context, id string) (models.PorqueAderimosItem, error) {
	return p.c.get(ctx, id)
}

func (p *PorqueAderimos) Create(ctx context.Context, in models.PorqueAderimosInput) (models.PorqueAderimosItem, error) {
	return p.c.create(ctx, fieldSet{"titulo": in.Titulo, "conteudo": in.Conteudo, "url": in.URL})
}

func (p *PorqueAderimos) Update(ctx context.Context, id string, patch models.PorqueAderimosPatch) (models.PorqueAderimosItem, error) {
	fields := fieldSet{}
	fields.setString("titulo", patch.Titulo)
	fields.setString("conteudo", patch.Conteudo)
	fields.setString("url", patch.URL)
	return p.c.update(ctx, id, fields)
}

func (p *PorqueAderimos) Delete(ctx context.Context, id string) error {
	return p.c.remove(ctx, id)
}
