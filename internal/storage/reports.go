package storage

import (
	"context"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// Reports stores complaints submitted through the public site.
type Reports struct {
	c collection[models.Report]
}

func newReports(coll docstore.Collection, cfg options) *Reports {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &Reports{c: newCollection(coll, sort, cfg, mapReport)}
}

func mapReport(r *docReader) models.Report {
	report := models.Report{
		ID:          r.doc.ID,
		Protocol:    r.required("protocol"),
		Descricao:   r.str("descricao"),
		Contato:     r.str("contato"),
		Anonimo:     r.bool("anonimo", false),
		Attachments: []models.Attachment{},
		Status:      models.ReportStatus(r.str("status")),
		Channel:     r.str("channel"),
		CreatedAt:   r.createdAt(),
		UpdatedAt:   r.updatedAt(),
	}
	r.into("attachments", &report.Attachments)
	if report.Status == "" {
		report.Status = models.ReportReceived
	}
	return report
}

func (rp *Reports) List(ctx context.Context) ([]models.Report, error) {
	return rp.c.list(ctx)
}

func (rp *Reports) Get(ctx context.Context, id string) (models.Report, error) {
	return rp.c.get(ctx, id)
}

// Create assigns a protocol and the received status. Anonymous reports never
// keep contact details.
func (rp *Reports) Create(ctx context.Context, in models.ReportInput) (models.Report, error) {
	protocol, err := generateProtocol(rp.c.opts.now())
	if err != nil {
		return models.Report{}, err
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	fields := fieldSet{
		"protocol":    protocol,
		"descricao":   in.Descricao,
		"anonimo":     in.Anonimo,
		"attachments": attachments,
		"status":      string(models.ReportReceived),
		"channel":     in.Channel,
	}
	if !in.Anonimo {
		fields.setNonEmpty("contato", in.Contato)
	}
	return rp.c.create(ctx, fields)
}

func (rp *Reports) Update(ctx context.Context, id string, patch models.ReportPatch) (models.Report, error) {
	fields := fieldSet{}
	fields.setString("descricao", patch.Descricao)
	fields.setString("contato", patch.Contato)
	fields.setBool("anonimo", patch.Anonimo)
	fields.setString("channel", patch.Channel)
	if patch.Attachments != nil {
		fields["attachments"] = *patch.Attachments
	}
	if patch.Status != nil {
		fields["status"] = string(*patch.Status)
	}
	if patch.Anonimo != nil && *patch.Anonimo {
		fields["contato"] = ""
	}
	return rp.c.update(ctx, id, fields)
}

func (rp *Reports) Delete(ctx context.Context, id string) error {
	return rp.c.remove(ctx, id)
}
