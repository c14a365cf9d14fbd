package api

import (
	"errors"
	"net/http"

	"portodas-api/internal/identity"
	"portodas-api/internal/storage"
	"portodas-api/internal/upload"
)

// identityStatus translates the provider codes callers may see. Every other
// code is an upstream failure.
func identityStatus(code string) (int, bool) {
	switch code {
	case identity.CodeEmailAlreadyExists:
		return http.StatusConflict, true
	case identity.CodeUserNotFound:
		return http.StatusNotFound, true
	case identity.CodeWeakPassword, identity.CodeInvalidEmail, identity.CodeInvalidPassword:
		return http.StatusBadRequest, true
	default:
		return 0, false
	}
}

// fail maps err to a response. Anything not explicitly translated is logged
// with the operation, resource and id, and answered with a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation, resource, id string, err error) {
	logger := h.logger(r).With("operation", operation, "resource", resource)
	if id != "" {
		logger = logger.With("id", id)
	}

	var identityErr *identity.Error
	if errors.As(err, &identityErr) {
		if status, ok := identityStatus(identityErr.Code); ok {
			logger.Info("identity provider rejected request", "code", identityErr.Code)
			writeErrorMessage(w, status, identityMessage(identityErr))
			return
		}
	}

	switch {
	case errors.Is(err, upload.ErrTooLarge):
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return
	case errors.Is(err, upload.ErrNoFile):
		writeErrorMessage(w, http.StatusBadRequest, "No file uploaded.")
		return
	case errors.Is(err, upload.ErrInvalidDestination), errors.Is(err, upload.ErrNoDestination):
		writeErrorMessage(w, http.StatusBadRequest, "Invalid destination.")
		return
	case errors.Is(err, upload.ErrInvalidKind):
		writeErrorMessage(w, http.StatusBadRequest, "Invalid type. Must be 'report' or 'banner'.")
		return
	case errors.Is(err, storage.ErrBlobMissing):
		writeErrorMessage(w, http.StatusBadRequest, "storagePath does not reference an uploaded file")
		return
	}

	var integrity *storage.IntegrityError
	if errors.As(err, &integrity) {
		logger.Error("stored document failed integrity check",
			"collection", integrity.Collection,
			"document", integrity.ID,
			"field", integrity.Field)
		h.recorder().ObserveStoreOperation(resource, operation, "invalid")
		writeErrorMessage(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	logger.Error("request failed", "error", err)
	h.recorder().ObserveStoreOperation(resource, operation, "error")
	writeErrorMessage(w, http.StatusInternalServerError, internalErrorMessage)
}

func identityMessage(err *identity.Error) string {
	switch err.Code {
	case identity.CodeEmailAlreadyExists:
		return "O endereço de e-mail já está em uso."
	case identity.CodeUserNotFound:
		return "Usuário não encontrado."
	}
	if err.Message != "" {
		return err.Message
	}
	return err.Code
}
