package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

const (
	fieldOrder    = "order"
	fieldType     = "type"
	fieldIsActive = "isActive"
)

// Sections stores page sections of every kind, ordered by order.
type Sections struct {
	c collection[models.Section]
}

func newSections(coll docstore.Collection, cfg options) *Sections {
	return &Sections{c: newCollection(coll, docstore.Query{OrderBy: fieldOrder}, cfg, mapSection)}
}

func mapSection(r *docReader) models.Section {
	section := models.Section{
		ID:        r.doc.ID,
		Order:     r.int(fieldOrder),
		IsActive:  r.bool(fieldIsActive, false),
		CreatedAt: r.createdAt(),
		UpdatedAt: r.updatedAt(),
	}
	kind, ok := models.ParseSectionKind(r.str(fieldType))
	if !ok {
		r.fail(fieldType)
		return section
	}
	raw, err := json.Marshal(r.doc.Data)
	if err != nil {
		r.fail(fieldType)
		return section
	}
	content, err := models.DecodeSectionContent(kind, raw)
	if err != nil {
		r.fail(fieldType)
		return section
	}
	check := &sectionIntegrity{}
	content.Accept(check)
	if check.missing != "" {
		r.fail(check.missing)
	}
	section.Content = content
	return section
}

// sectionIntegrity records the first required field a stored section lacks.
type sectionIntegrity struct {
	missing string
}

func (s *sectionIntegrity) require(field, value string) {
	if s.missing == "" && value == "" {
		s.missing = field
	}
}

func (s *sectionIntegrity) VisitHero(h *models.HeroSection) {
	s.require("title", h.Title)
	s.require("imageUrl", h.ImageURL)
}

func (s *sectionIntegrity) VisitText(t *models.TextSection) {
	s.require("title", t.Title)
	s.require("body", t.Body)
}

func (s *sectionIntegrity) VisitImageGallery(g *models.ImageGallerySection) {
	s.require("title", g.Title)
}

func (s *sectionIntegrity) VisitGlobalContent(g *models.GlobalContentSection) {
	s.require("name", g.Name)
}

func (s *sectionIntegrity) VisitReportingChannels(c *models.ReportingChannelsSection) {
	s.require("title", c.Title)
}

func (s *sectionIntegrity) VisitPartnerInstitutions(p *models.PartnerInstitutionsSection) {
	s.require("title", p.Title)
}

func (s *sectionIntegrity) VisitTestimonialsAndVideos(t *models.TestimonialsAndVideosSection) {
	s.require("title", t.Title)
}

func (s *sectionIntegrity) VisitIniciativas(i *models.IniciativasSection) {
	s.require("title", i.Title)
}

func (s *Sections) List(ctx context.Context) ([]models.Section, error) {
	return s.c.list(ctx)
}

// ListActive returns the sections flagged active, in order.
func (s *Sections) ListActive(ctx context.Context) ([]models.Section, error) {
	q := s.c.sort
	q.Where = []docstore.Filter{{Field: fieldIsActive, Value: true}}
	return s.c.query(ctx, q)
}

func (s *Sections) Get(ctx context.Context, id string) (models.Section, error) {
	return s.c.get(ctx, id)
}

// Create stores the section, assigning the next order when none is given.
func (s *Sections) Create(ctx context.Context, in models.SectionInput) (models.Section, error) {
	if in.Content == nil {
		return models.Section{}, fmt.Errorf("create section: %w", models.ErrUnknownSectionKind)
	}
	raw, err := json.Marshal(in.Content)
	if err != nil {
		return models.Section{}, fmt.Errorf("encode section: %w", err)
	}
	fields := fieldSet{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Section{}, fmt.Errorf("encode section: %w", err)
	}
	fields[fieldType] = string(in.Content.Kind())
	fields[fieldIsActive] = in.IsActive
	return s.c.createOrdered(ctx, fieldOrder, in.Order, fields)
}

// Update merges the content fields of patch. The type of a section never
// changes; a type key in patch.Fields is ignored.
func (s *Sections) Update(ctx context.Context, id string, patch models.SectionPatch) (models.Section, error) {
	fields := fieldSet{}
	for key, value := range patch.Fields {
		switch key {
		case fieldType, fieldOrder, fieldIsActive, "id", "createdAt", "updatedAt":
			continue
		}
		fields[key] = value
	}
	fields.setInt(fieldOrder, patch.Order)
	fields.setBool(fieldIsActive, patch.IsActive)
	return s.c.update(ctx, id, fields)
}

func (s *Sections) Delete(ctx context.Context, id string) error {
	return s.c.remove(ctx, id)
}
