package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// NaoSeCale stores the "não se cale" entries, newest first. Both url and
// conteudo are required in stored documents.
type NaoSeCale struct {
	c collection[models.NaoSeCaleItem]
}

func newNaoSeCale(coll docstore.Collection, cfg options) *NaoSeCale {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &NaoSeCale{c: newCollection(coll, sort, cfg, mapNaoSeCale)}
}

func mapNaoSeCale(r *docReader) models.NaoSeCaleItem {
	return models.NaoSeCaleItem{
		ID:        r.doc.ID,
		URL:       r.required("url"),
		Conteudo:  r.required("conteudo"),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
}

func (n *NaoSeCale) List(ctx context.Context) ([]models.NaoSeCaleItem, error) {
	return n.c.list(ctx)
}

func (n *NaoSeCale) Get(ctx context.Context, id string) (models.NaoSeCaleItem, error) {
	return n.c.get(ctx, id)
}

func (n *NaoSeCale) Create(ctx context.Context, in models.NaoSeCaleInput) (models.NaoSeCaleItem, error) {
	return n.c.create(ctx, fieldSet{"url": in.URL, "conteudo": in.Conteudo})
}

func (n *NaoSeCale) Update(ctx context.Context, id string, patch models.NaoSeCalePatch) (models.NaoSeCaleItem, error) {
	fields := fieldSet{}
	fields.setString("url", patch.URL)
	fields.setString("conteudo", patch.Conteudo)
	return n.c.update(ctx, id, fields)
}

func (n *NaoSeCale) Delete(ctx context.Context, id string) error {
	return n.c.remove(ctx, id)
}
