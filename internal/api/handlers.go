package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portodas-api/internal/identity"
	"portodas-api/internal/observability/logging"
	"portodas-api/internal/observability/metrics"
	"portodas-api/internal/storage"
	"portodas-api/internal/upload"
	"portodas-api/internal/validation"
)

// DefaultBodyLimit bounds JSON request bodies.
const DefaultBodyLimit int64 = 5 << 20

// HealthCheck is an extra component checked by /healthz.
type HealthCheck struct {
	Component string
	Ping      func(context.Context) error
}

type Handler struct {
	Repos        *storage.Repositories
	Identity     identity.Provider
	Uploads      *upload.Service
	Validator    *validation.Validator
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	BodyLimit    int64
	HealthChecks []HealthCheck
}

func NewHandler(repos *storage.Repositories, provider identity.Provider, uploads *upload.Service) *Handler {
	return &Handler{
		Repos:     repos,
		Identity:  provider,
		Uploads:   uploads,
		Validator: validation.MustNew(),
		Logger:    logging.WithComponent(slog.Default(), "api"),
		Metrics:   metrics.Default(),
		BodyLimit: DefaultBodyLimit,
	}
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	base := h.Logger
	if base == nil {
		base = slog.Default()
	}
	return logging.WithContext(r.Context(), base)
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics == nil {
		return metrics.Default()
	}
	return h.Metrics
}

// PublicRoutes serves the unauthenticated site content under /api/public.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.PublicAggregate)
	r.Get("/lastPosts", h.LastPosts)
	r.Get("/documents/{id}", h.Document)
	r.Get("/banners", h.ActiveBanners)
	r.Get("/sections", h.ActiveSections)
	r.Get("/sections/{id}", h.ActiveSection)
	r.Post("/reports", h.SubmitReport)
	for _, res := range h.contentResources() {
		if !res.public {
			continue
		}
		for _, path := range res.paths {
			r.Route("/"+path, res.mountPublic)
		}
	}
	return r
}

// AdminRoutes serves content and user administration under /api/admin. Every
// route requires an admin token.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.RequireToken, h.RequireAdmin)
	for _, res := range h.contentResources() {
		for _, path := range res.paths {
			r.Route("/"+path, res.mountAdmin)
		}
	}
	r.Route("/sections", h.mountSections)
	r.Route("/banners", h.mountBanners)
	r.Route("/users", h.mountUsers)
	return r
}

// UploadRoutes serves /api/uploads. The file route requires a token; the
// signed-url route requires an admin token only for banner uploads.
func (h *Handler) UploadRoutes() chi.Router {
	r := chi.NewRouter()
	r.With(h.RequireToken).Post("/file", h.UploadFile)
	r.Post("/signed-url", h.SignedUploadURL)
	return r
}

// AuthRoutes serves /api/auth.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.IssueToken)
	return r
}
