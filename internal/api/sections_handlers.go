package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portodas-api/internal/storage"
	"portodas-api/internal/validation"
)

const sectionsResource = "sections"

func (h *Handler) mountSections(r chi.Router) {
	r.Get("/", h.listSections)
	r.Post("/", h.createSection)
	r.Get("/{id}", h.getSection)
	r.Put("/{id}", h.updateSection)
	r.Delete("/{id}", h.deleteSection)
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Repos.Sections.List(r.Context())
	if err != nil {
		h.fail(w, r, "list", sectionsResource, "", err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

func (h *Handler) getSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	section, err := h.Repos.Sections.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Section not found")
		return
	}
	if err != nil {
		h.fail(w, r, "get", sectionsResource, id, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (h *Handler) createSection(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	in, result := validation.DecodeSectionCreate(h.Validator, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	section, err := h.Repos.Sections.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create", sectionsResource, "", err)
		return
	}
	h.recorder().ObserveStoreOperation(sectionsResource, "create", "ok")
	writeJSON(w, http.StatusCreated, section)
}

// updateSection validates the body against the stored section's kind, so
// the existence check happens before validation.
func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.Repos.Sections.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Section not found")
		return
	}
	if err != nil {
		h.fail(w, r, "update", sectionsResource, id, err)
		return
	}
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	patch, result := validation.DecodeSectionUpdate(h.Validator, current.Kind(), raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	section, err := h.Repos.Sections.Update(r.Context(), id, patch)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Section not found")
		return
	}
	if err != nil {
		h.fail(w, r, "update", sectionsResource, id, err)
		return
	}
	h.recorder().ObserveStoreOperation(sectionsResource, "update", "ok")
	writeJSON(w, http.StatusOK, section)
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Repos.Sections.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, "Section not found")
		return
	}
	if err != nil {
		h.fail(w, r, "delete", sectionsResource, id, err)
		return
	}
	h.recorder().ObserveStoreOperation(sectionsResource, "delete", "ok")
	writeNoContent(w)
}

// ActiveSections lists the sections flagged active, in page order.
func (h *Handler) ActiveSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Repos.Sections.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, "list_active", sectionsResource, "", err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

// ActiveSection hides inactive sections from the public site.
func (h *Handler) ActiveSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	section, err := h.Repos.Sections.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !section.IsActive) {
		writePublicMessage(w, http.StatusNotFound, "Seção não encontrada")
		return
	}
	if err != nil {
		h.fail(w, r, "get", sectionsResource, id, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}
