package api

import (
	"github.com/go-chi/chi/v5"

	"portodas-api/internal/models"
	"portodas-api/internal/validation"
)

type contentRoute struct {
	paths       []string
	public      bool
	mountPublic func(chi.Router)
	mountAdmin  func(chi.Router)
}

func newContentRoute[T, In, P any](rs *resource[T, In, P], public bool, paths ...string) contentRoute {
	return contentRoute{
		paths:       paths,
		public:      public,
		mountPublic: rs.mountPublic,
		mountAdmin:  rs.mountAdmin,
	}
}

// contentResources lists the plain CRUD resources. The first path is the
// original route name; the second is its English alias.
func (h *Handler) contentResources() []contentRoute {
	repos := h.Repos
	return []contentRoute{
		newContentRoute(&resource[models.Testimonial, models.TestimonialInput, models.TestimonialPatch]{
			h:             h,
			name:          "testimonials",
			label:         "testimonial",
			publicMissing: "Depoimento não encontrado",
			schema:        validation.Testimonial,
			list:          repos.Testimonials.List,
			get:           repos.Testimonials.Get,
			create:        repos.Testimonials.Create,
			update:        repos.Testimonials.Update,
			remove:        repos.Testimonials.Delete,
		}, true, "testimonials"),
		newContentRoute(&resource[models.Initiative, models.InitiativeInput, models.InitiativePatch]{
			h:             h,
			name:          "initiatives",
			label:         "iniciativa",
			publicMissing: "Iniciativa não encontrada",
			schema:        validation.Initiative,
			list:          repos.Initiatives.List,
			get:           repos.Initiatives.Get,
			create:        repos.Initiatives.Create,
			update:        repos.Initiatives.Update,
			remove:        repos.Initiatives.Delete,
		}, true, "iniciativas", "initiatives"),
		newContentRoute(&resource[models.Post, models.PostInput, models.PostPatch]{
			h:             h,
			name:          "posts",
			label:         "post",
			publicMissing: "Post não encontrado",
			schema:        validation.Post,
			list:          repos.Posts.List,
			get:           repos.Posts.Get,
			create:        repos.Posts.Create,
			update:        repos.Posts.Update,
			remove:        repos.Posts.Delete,
		}, true, "posts"),
		newContentRoute(&resource[models.ReportChannel, models.ReportChannelInput, models.ReportChannelPatch]{
			h:             h,
			name:          "report_channels",
			label:         "canal de denúncia",
			publicMissing: "Canal de denúncia não encontrado",
			schema:        validation.ReportChannel,
			list:          repos.ReportChannels.List,
			get:           repos.ReportChannels.Get,
			create:        repos.ReportChannels.Create,
			update:        repos.ReportChannels.Update,
			remove:        repos.ReportChannels.Delete,
		}, true, "canaisDenuncia", "report-channels"),
		newContentRoute(&resource[models.NaoSeCaleItem, models.NaoSeCaleInput, models.NaoSeCalePatch]{
			h:             h,
			name:          "nao_se_cale",
			label:         "item",
			publicMissing: "Item não encontrado",
			schema:        validation.NaoSeCale,
			list:          repos.NaoSeCale.List,
			get:           repos.NaoSeCale.Get,
			create:        repos.NaoSeCale.Create,
			update:        repos.NaoSeCale.Update,
			remove:        repos.NaoSeCale.Delete,
		}, true, "naoSeCale", "do-not-be-silent"),
		newContentRoute(&resource[models.PorqueAderimosItem, models.PorqueAderimosInput, models.PorqueAderimosPatch]{
			h:             h,
			name:          "porque_aderimos",
			label:         "item",
			publicMissing: "Item não encontrado",
			schema:        validation.PorqueAderimos,
			list:          repos.PorqueAderimos.List,
			get:           repos.PorqueAderimos.Get,
			create:        repos.PorqueAderimos.Create,
			update:        repos.PorqueAderimos.Update,
			remove:        repos.PorqueAderimos.Delete,
		}, true, "porqueAderimos", "why-we-joined"),
		newContentRoute(&resource[models.Report, models.ReportInput, models.ReportPatch]{
			h:             h,
			name:          "reports",
			label:         "report",
			publicMissing: "Denúncia não encontrada",
			schema:        validation.Report,
			list:          repos.Reports.List,
			get:           repos.Reports.Get,
			create:        repos.Reports.Create,
			update:        repos.Reports.Update,
			remove:        repos.Reports.Delete,
		}, false, "reports"),
	}
}
