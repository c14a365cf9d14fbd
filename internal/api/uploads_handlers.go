package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portodas-api/internal/upload"
	"portodas-api/internal/validation"
)

const (
	uploadsResource    = "uploads"
	defaultDestination = "general"
	multipartOverhead  = 1 << 20
)

// UploadFile stores the multipart "file" part under the "destination" form
// field. Only admins may write anywhere under the banners folder.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.Uploads == nil {
		h.fail(w, r, "upload", uploadsResource, "", errors.New("upload service not configured"))
		return
	}
	file, ok := h.readMultipartFile(w, r)
	if !ok {
		return
	}
	destination := strings.TrimSpace(r.FormValue("destination"))
	if destination == "" {
		destination = defaultDestination
	}
	destination, err := upload.CleanDestination(destination)
	if err != nil {
		h.fail(w, r, "upload", uploadsResource, "", err)
		return
	}
	if upload.TopFolder(destination) == bannerFolder {
		token, _ := TokenFromContext(r.Context())
		if !token.IsAdmin() {
			h.recorder().ObserveAuthFailure("not_admin")
			writeErrorMessage(w, http.StatusForbidden, "Forbidden: Only admins can upload banners.")
			return
		}
	}

	result, err := h.Uploads.Store(r.Context(), file, destination)
	h.recorder().ObserveUpload(destination, len(file.Data), err)
	if err != nil {
		h.fail(w, r, "upload", uploadsResource, destination, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// readMultipartFile buffers the "file" part, bounded by the upload ceiling
// plus room for the other form fields.
func (h *Handler) readMultipartFile(w http.ResponseWriter, r *http.Request) (upload.File, bool) {
	maxBytes := h.Uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return upload.File{}, false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return upload.File{}, false
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "No file uploaded.")
		return upload.File{}, false
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return upload.File{}, false
	}
	if int64(len(data)) > maxBytes {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return upload.File{}, false
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return upload.File{Data: data, ContentType: contentType, Name: header.Filename}, true
}

type signedURLRequest struct {
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// SignedUploadURL presigns a direct upload. Banner uploads require an admin
// token; report attachments may be uploaded anonymously.
func (h *Handler) SignedUploadURL(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	var peek signedURLRequest
	_ = json.Unmarshal(raw, &peek)
	if peek.Type == "banner" {
		token, err := h.authenticate(r)
		if err != nil {
			h.rejectAuth(w, http.StatusUnauthorized, err)
			return
		}
		if !token.IsAdmin() {
			h.rejectAuth(w, http.StatusForbidden, errAdminOnly)
			return
		}
	}

	req, result := validation.Decode[signedURLRequest](h.Validator, validation.SignedURL, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	if h.Uploads == nil {
		h.fail(w, r, "sign", uploadsResource, "", errors.New("upload service not configured"))
		return
	}
	signed, err := h.Uploads.SignedUploadURL(r.Context(), req.Type, req.Filename, req.ContentType)
	if err != nil {
		h.fail(w, r, "sign", uploadsResource, req.Type, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}
