package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// ReportChannels stores the report channel figures ordered by ordem.
type ReportChannels struct {
	c collection[models.ReportChannel]
}

func newReportChannels(coll docstore.Collection, cfg options) *ReportChannels {
	return &ReportChannels{c: newCollection(coll, docstore.Query{OrderBy: fieldOrdem}, cfg, mapReportChannel)}
}

func mapReportChannel(r *docReader) models.ReportChannel {
	return models.ReportChannel{
		ID:            r.doc.ID,
		Quantificador: r.str("quantificador"),
		Valor:         r.str("valor"),
		Ordem:         r.int(fieldOrdem),
		CreatedAt:     r.createdAt(),
		UpdatedAt:     r.updatedAt(),
	}
}

func (rc *ReportChannels) List(ctx context.Context) ([]models.ReportChannel, error) {
	return rc.c.list(ctx)
}

func (rc *ReportChannels) Get(ctx context.Context, id string) (models.ReportChannel, error) {
	return rc.c.get(ctx, id)
}

func (rc *ReportChannels) Create(ctx context.Context, in models.ReportChannelInput) (models.ReportChannel, error) {
	fields := fieldSet{"quantificador": in.Quantificador, "valor": in.Valor}
	return rc.c.createOrdered(ctx, fieldOrdem, in.Ordem, fields)
}

func (rc *ReportChannels) Update(ctx context.Context, id string, patch models.ReportChannelPatch) (models.ReportChannel, error) {
	fields := fieldSet{}
	fields.setString("quantificador", patch.Quantificador)
	fields.setString("valor", patch.Valor)
	fields.setInt(fieldOrdem, patch.Ordem)
	return rc.c.update(ctx, id, fields)
}

func (rc *ReportChannels) Delete(ctx context.Context, id string) error {
	return rc.c.remove(ctx, id)
}

// NextOrder reports the ordem a create without one would receive.
func (rc *ReportChannels) NextOrder(ctx context.Context) (int, error) {
	return NextOrder(ctx, rc.c.coll, fieldOrdem)
}
