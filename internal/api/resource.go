package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"portodas-api/internal/storage"
	"portodas-api/internal/validation"
)

// resource adapts one repository to the five conventional CRUD routes.
// T is the stored entity, In the create input and P the partial update.
type resource[T, In, P any] struct {
	h *Handler

	name          string // metrics and log label
	label         string // admin not-found message subject
	publicMissing string // public not-found message
	schema        string

	list   func(context.Context) ([]T, error)
	get    func(context.Context, string) (T, error)
	create func(context.Context, In) (T, error)
	update func(context.Context, string, P) (T, error)
	remove func(context.Context, string) error
}

func (rs *resource[T, In, P]) mountPublic(r chi.Router) {
	r.Get("/", rs.handleList)
	r.Get("/{id}", rs.handleGet(true))
}

func (rs *resource[T, In, P]) mountAdmin(r chi.Router) {
	r.Get("/", rs.handleList)
	r.Post("/", rs.handleCreate)
	r.Get("/{id}", rs.handleGet(false))
	r.Put("/{id}", rs.handleUpdate)
	r.Delete("/{id}", rs.handleDelete)
}

func (rs *resource[T, In, P]) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := rs.list(r.Context())
	if err != nil {
		rs.h.fail(w, r, "list", rs.name, "", err)
		return
	}
	if items == nil {
		items = []T{}
	}
	rs.h.recorder().ObserveStoreOperation(rs.name, "list", "ok")
	writeJSON(w, http.StatusOK, items)
}

func (rs *resource[T, In, P]) handleGet(public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := rs.get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			rs.notFound(w, public)
			return
		}
		if err != nil {
			rs.h.fail(w, r, "get", rs.name, id, err)
			return
		}
		rs.h.recorder().ObserveStoreOperation(rs.name, "get", "ok")
		writeJSON(w, http.StatusOK, item)
	}
}

func (rs *resource[T, In, P]) handleCreate(w http.ResponseWriter, r *http.Request) {
	raw, ok := rs.h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	in, result := validation.Decode[In](rs.h.Validator, rs.schema, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	created, err := rs.create(r.Context(), in)
	if err != nil {
		rs.h.fail(w, r, "create", rs.name, "", err)
		return
	}
	rs.h.recorder().ObserveStoreOperation(rs.name, "create", "ok")
	writeJSON(w, http.StatusCreated, created)
}

func (rs *resource[T, In, P]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw, ok := rs.h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	patch, result := validation.Decode[P](rs.h.Validator, rs.schema, validation.Update, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	updated, err := rs.update(r.Context(), id, patch)
	if errors.Is(err, storage.ErrNotFound) {
		rs.notFound(w, false)
		return
	}
	if err != nil {
		rs.h.fail(w, r, "update", rs.name, id, err)
		return
	}
	rs.h.recorder().ObserveStoreOperation(rs.name, "update", "ok")
	writeJSON(w, http.StatusOK, updated)
}

func (rs *resource[T, In, P]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := rs.remove(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		rs.notFound(w, false)
		return
	}
	if err != nil {
		rs.h.fail(w, r, "delete", rs.name, id, err)
		return
	}
	rs.h.recorder().ObserveStoreOperation(rs.name, "delete", "ok")
	writeNoContent(w)
}

func (rs *resource[T, In, P]) notFound(w http.ResponseWriter, public bool) {
	rs.h.recorder().ObserveStoreOperation(rs.name, "lookup", "not_found")
	if public {
		writePublicMessage(w, http.StatusNotFound, rs.publicMissing)
		return
	}
	writeErrorMessage(w, http.StatusNotFound, upperFirst(rs.label)+" not found")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
