package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"portodas-api/internal/models"
	"portodas-api/internal/storage"
	"portodas-api/internal/validation"
)

const (
	bannersResource = "banners"
	bannerFolder    = "banners"
)

func (h *Handler) mountBanners(r chi.Router) {
	r.Get("/", h.listBanners)
	r.Post("/", h.createBanner)
	r.Post("/confirm", h.confirmBanner)
	r.Get("/{id}", h.getBanner)
	r.Put("/{id}", h.updateBanner)
	r.Delete("/{id}", h.deleteBanner)
}

func (h *Handler) listBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.Repos.Banners.List(r.Context())
	if err != nil {
		h.fail(w, r, "list", bannersResource, "", err)
		return
	}
	writeJSON(w, http.StatusOK, banners)
}

// ActiveBanners lists the banners shown on the public site.
func (h *Handler) ActiveBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.Repos.Banners.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, "list_active", bannersResource, "", err)
		return
	}
	writeJSON(w, http.StatusOK, banners)
}

func (h *Handler) getBanner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	banner, err := h.Repos.Banners.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.fail(w, r, "get", bannersResource, id, err)
		return
	}
	writeJSON(w, http.StatusOK, banner)
}

// createBanner accepts either a multipart upload, stored under banners/ and
// confirmed in one step, or the JSON body of confirmBanner.
func (h *Handler) createBanner(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		h.confirmBanner(w, r)
		return
	}
	if h.Uploads == nil {
		h.fail(w, r, "create", bannersResource, "", storage.ErrBlobStoreUnavailable)
		return
	}
	file, ok := h.readMultipartFile(w, r)
	if !ok {
		return
	}
	in := models.BannerInput{
		Alt:  r.FormValue("alt"),
		Link: r.FormValue("link"),
	}
	if raw := strings.TrimSpace(r.FormValue("isActive")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeValidation(w, validation.Result{Errors: []validation.FieldError{{Field: "isActive", Message: "isActive must be a boolean"}}})
			return
		}
		in.IsActive = &active
	}

	stored, err := h.Uploads.Store(r.Context(), file, bannerFolder)
	h.recorder().ObserveUpload(bannerFolder, len(file.Data), err)
	if err != nil {
		h.fail(w, r, "upload", bannersResource, "", err)
		return
	}
	in.StoragePath = stored.StoragePath
	banner, err := h.Repos.Banners.Confirm(r.Context(), in)
	if err != nil {
		h.Uploads.Discard(r.Context(), stored.StoragePath)
		h.fail(w, r, "confirm", bannersResource, stored.StoragePath, err)
		return
	}
	h.recorder().ObserveStoreOperation(bannersResource, "create", "ok")
	writeJSON(w, http.StatusCreated, banner)
}

// confirmBanner records a banner for a blob the client already uploaded,
// typically through a signed URL.
func (h *Handler) confirmBanner(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	in, result := validation.Decode[models.BannerInput](h.Validator, validation.BannerConfirm, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	h.saveBanner(w, r, in)
}

func (h *Handler) saveBanner(w http.ResponseWriter, r *http.Request, in models.BannerInput) {
	banner, err := h.Repos.Banners.Confirm(r.Context(), in)
	if err != nil {
		h.fail(w, r, "confirm", bannersResource, in.StoragePath, err)
		return
	}
	h.recorder().ObserveStoreOperation(bannersResource, "create", "ok")
	writeJSON(w, http.StatusCreated, banner)
}

func (h *Handler) updateBanner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	patch, result := validation.Decode[models.BannerPatch](h.Validator, validation.BannerUpdate, validation.Update, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	banner, err := h.Repos.Banners.Update(r.Context(), id, patch)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.fail(w, r, "update", bannersResource, id, err)
		return
	}
	h.recorder().ObserveStoreOperation(bannersResource, "update", "ok")
	writeJSON(w, http.StatusOK, banner)
}

// deleteBanner removes the backing blob first; a blob that is already gone
// does not block removing the document.
func (h *Handler) deleteBanner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Repos.Banners.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		h.fail(w, r, "delete", bannersResource, id, err)
		return
	}
	h.recorder().ObserveStoreOperation(bannersResource, "delete", "ok")
	writeNoContent(w)
}
