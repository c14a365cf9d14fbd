package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"portodas-api/internal/validation"
)

const internalErrorMessage = "Erro interno do servidor"

var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

// writePublicMessage uses the {"msg": ...} shape of the public routes.
func writePublicMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"msg": message})
}

type validationResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields"`
}

func writeValidation(w http.ResponseWriter, result validation.Result) {
	writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: result.Errors})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// readBody buffers the request body up to the handler's limit.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	limit := h.BodyLimit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return raw, nil
}

// readBodyOrFail writes the error response itself and reports false when the
// body could not be read.
func (h *Handler) readBodyOrFail(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := h.readBody(w, r)
	if err == nil {
		return raw, true
	}
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return nil, false
	}
	writeError(w, http.StatusBadRequest, err)
	return nil, false
}
