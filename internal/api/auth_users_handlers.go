package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"portodas-api/internal/identity"
	"portodas-api/internal/validation"
)

const usersResource = "users"

type userResponse struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"displayName,omitempty"`
	Disabled     bool           `json:"disabled"`
	CustomClaims map[string]any `json:"customClaims"`
	CreationTime string         `json:"creationTime"`
}

func newUserResponse(user identity.UserRecord) userResponse {
	claims := user.CustomClaims
	if claims == nil {
		claims = map[string]any{}
	}
	return userResponse{
		UID:          user.UID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Disabled:     user.Disabled,
		CustomClaims: claims,
		CreationTime: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type promoteRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) mountUsers(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createAdminUser)
	r.Put("/promote", h.promoteUser)
	r.Get("/{uid}", h.getUser)
	r.Delete("/{uid}", h.deleteUser)
	r.Post("/{uid}/revoke", h.revokeUserTokens)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Identity.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "list", usersResource, "", err)
		return
	}
	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, newUserResponse(user))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	user, err := h.Identity.GetUser(r.Context(), uid)
	if err != nil {
		h.fail(w, r, "get", usersResource, uid, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// createAdminUser creates an account that already holds the admin claim.
func (h *Handler) createAdminUser(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	req, result := validation.Decode[createUserRequest](h.Validator, validation.UserCreate, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Email e senha são obrigatórios.")
		return
	}

	user, err := h.Identity.CreateUser(r.Context(), identity.UserToCreate{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(w, r, "create", usersResource, "", err)
		return
	}
	if err := h.Identity.SetCustomUserClaims(r.Context(), user.UID, map[string]any{identity.AdminClaim: true}); err != nil {
		h.fail(w, r, "set_claims", usersResource, user.UID, err)
		return
	}
	h.logger(r).Info("admin user created", "target_uid", user.UID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("Usuário administrador criado com sucesso: %s", user.Email),
		"uid":     user.UID,
	})
}

// promoteUser grants the admin claim to an existing account, keeping any
// other claims it holds.
func (h *Handler) promoteUser(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	req, result := validation.Decode[promoteRequest](h.Validator, validation.Promote, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}

	user, err := h.Identity.GetUserByEmail(r.Context(), req.Email)
	if identity.CodeOf(err) == identity.CodeUserNotFound {
		writeErrorMessage(w, http.StatusNotFound, fmt.Sprintf("Usuário com e-mail %s não encontrado.", req.Email))
		return
	}
	if err != nil {
		h.fail(w, r, "promote", usersResource, "", err)
		return
	}
	claims := make(map[string]any, len(user.CustomClaims)+1)
	for key, value := range user.CustomClaims {
		claims[key] = value
	}
	claims[identity.AdminClaim] = true
	if err := h.Identity.SetCustomUserClaims(r.Context(), user.UID, claims); err != nil {
		h.fail(w, r, "promote", usersResource, user.UID, err)
		return
	}
	h.logger(r).Info("user promoted to admin", "target_uid", user.UID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Sucesso! %s agora é um administrador.", req.Email),
	})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.Identity.DeleteUser(r.Context(), uid); err != nil {
		h.fail(w, r, "delete", usersResource, uid, err)
		return
	}
	h.logger(r).Info("user deleted", "target_uid", uid)
	writeNoContent(w)
}

// revokeUserTokens invalidates every token issued to the account so far.
func (h *Handler) revokeUserTokens(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.Identity.RevokeRefreshTokens(r.Context(), uid); err != nil {
		h.fail(w, r, "revoke", usersResource, uid, err)
		return
	}
	writeNoContent(w)
}

// IssueToken exchanges email and password for an ID token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBodyOrFail(w, r)
	if !ok {
		return
	}
	req, result := validation.Decode[tokenRequest](h.Validator, validation.AuthToken, validation.Create, raw)
	if !result.Valid() {
		writeValidation(w, result)
		return
	}
	signed, err := h.Identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch identity.CodeOf(err) {
		case identity.CodeInvalidPassword, identity.CodeUserDisabled:
			h.recorder().ObserveAuthFailure("bad_credentials")
			writeErrorMessage(w, http.StatusUnauthorized, "invalid email or password")
		default:
			h.fail(w, r, "sign_in", "auth", "", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, signed)
}
