package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

const fieldOrdem = "ordem"

// Initiatives stores the initiatives section ordered by ordem.
type Initiatives struct {
	c collection[models.Initiative]
}

func newInitiatives(coll docstore.Collection, cfg options) *Initiatives {
	return &Initiatives{c: newCollection(coll, docstore.Query{OrderBy: fieldOrdem}, cfg, mapInitiative)}
}

func mapInitiative(r *docReader) models.Initiative {
	return models.Initiative{
		ID:        r.doc.ID,
		Titulo:    r.str("titulo"),
		URL:       r.optional("url"),
		Ordem:     r.int(fieldOrdem),
		Conteudo:  r.str("conteudo"),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
}

func (i *Initiatives) List(ctx context.Context) ([]models.Initiative, error) {
	return i.c.list(ctx)
}

func (i *Initiatives) Get(ctx context.Context, id string) (models.Initiative, error) {
	return i.c.get(ctx, id)
}

// Create assigns the next ordem when the input omits it.
func (i *Initiatives) Create(ctx context.Context, in models.InitiativeInput) (models.Initiative, error) {
	fields := fieldSet{"titulo": in.Titulo, "conteudo": in.Conteudo}
	fields.setString("url", in.URL)
	return i.c.createOrdered(ctx, fieldOrdem, in.Ordem, fields)
}

func (i *Initiatives) Update(ctx context.Context, id string, patch models.InitiativePatch) (models.Initiative, error) {
	fields := fieldSet{}
	fields.setString("titulo", patch.Titulo)
	fields.setString("url", patch.URL)
	fields.setInt(fieldOrdem, patch.Ordem)
	fields.setString("conteudo", patch.Conteudo)
	return i.c.update(ctx, id, fields)
}

func (i *Initiatives) Delete(ctx context.Context, id string) error {
	return i.c.remove(ctx, id)
}

// NextOrder reports the ordem a create without one would receive.
func (i *Initiatives) NextOrder(ctx context.Context) (int, error) {
	return NextOrder(ctx, i.c.coll, fieldOrdem)
}
