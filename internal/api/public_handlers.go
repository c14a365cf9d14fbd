package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"portodas-api/internal/models"
	"portodas-api/internal/storage"
	"portodas-api/internal/validation"
)

const lastPostsCount = 3

type publicContent struct {
	Carrossel      []models.LegacyDocument     `json:"section0Carrossel"`
	NaoSeCale      []models.NaoSeCaleItem      `json:"section1NaoSeCale"`
	PorqueAderimos []models.PorqueAderimosItem `json:"section2PorqueAderimos"`
	CanaisDenuncia []models.ReportChannel      `json:"section3CanaisDenuncia"`
	Curso          []models.LegacyDocument     `json:"section4Curso"`
	Iniciativas    []models.Initiative         `json:"section5Iniciativas"`
	InstParceiras  []models.LegacyDocument     `json:"section6InstParceiras"`
	Depoimentos    []models.LegacyDocument     `json:"section7Depoimentos"`
	PostsDestaque  []models.Post               `json:"section8PostsDestaque"`
	Documentos     []models.LegacyDocument     `json:"section9Documentos"`
	SPporTodas     []models.LegacyDocument     `json:"section10SPporTodas"`
}

// collect runs load in g and stores its result in dest.
func collect[T any](ctx context.Context, g *errgroup.Group, dest *[]T, load func(context.Context) ([]T, error)) {
	g.Go(func() error {
		items, err := load(ctx)
		if err != nil {
			return err
		}
		*dest = items
		return nil
	})
}

func legacy(repos *storage.Repositories, collection string) func(context.Context) ([]models.LegacyDocument, error) {
	return func(ctx context.Context) ([]models.LegacyDocument, error) {
		return repos.Legacy.List(ctx, collection)
	}
}

// PublicAggregate returns every public section in one document. The
// collections are read concurrently; any failure fails the whole response.
func (h *Handler) PublicAggregate(w http.ResponseWriter, r *http.Request) {
	repos := h.Repos
	var content publicContent
	g, ctx := errgroup.WithContext(r.Context())
	collect(ctx, g, &content.Carrossel, legacy(repos, storage.CollectionCarrossel))
	collect(ctx, g, &content.NaoSeCale, repos.NaoSeCale.List)
	collect(ctx, g, &content.PorqueAderimos, repos.PorqueAderimos.List)
	collect(ctx, g, &content.CanaisDenuncia, repos.ReportChannels.List)
	collect(ctx, g, &content.Curso, legacy(repos, storage.CollectionCurso))
	collect(ctx, g, &content.Iniciativas, repos.Initiatives.List)
	collect(ctx, g, &content.InstParceiras, legacy(repos, storage.CollectionInstParceiras))
	collect(ctx, g, &content.Depoimentos, legacy(repos, storage.CollectionDepoimentos))
	collect(ctx, g, &content.PostsDestaque, repos.Posts.List)
	collect(ctx, g, &content.Documentos, legacy(repos, storage.CollectionDocumentos))
	collect(ctx, g, &content.SPporTodas, legacy(repos, storage.CollectionSPporTodas))
	if err := g.Wait(); err != nil {
		h.fail(w, r, "aggregate", "public", "", err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// LastPosts returns the three newest posts.
func (h *Handler) LastPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Repos.Posts.Latest(r.Context(), lastPostsCount)
	if err != nil {
		h.fail(w, r, "latest", "posts", "", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Document returns one raw document of the documents collection.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.Repos.Legacy.Get(r.Context(), storage.CollectionDocumentos, id)
	if errors.Is(err, storage.ErrNotFound) {
		writePublicMessage(w, http.StatusNotFound, "Documento não encontrado")
		return
	}
	if err != nil {
		h.fail(w, r, "get", "documents", id, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SubmitReport files a report from the public site. The protocol and the
// initial status are assigned by the repository.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	in, result := validation.Decode[models.ReportInput](h.Validator, validation.Report, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	report, err := h.Repos.Reports.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create", "reports", "", err)
		return
	}
	h.recorder().ObserveStoreOperation("reports", "create", "ok")
	h.logger(r).Info("report received", "protocol", report.Protocol, "channel", report.Channel)
	writeJSON(w, http.StatusCreated, report)
}
