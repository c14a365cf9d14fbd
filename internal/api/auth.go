package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portodas-api/internal/identity"
	"portodas-api/internal/observability/logging"
)

type contextKey string

const tokenContextKey contextKey = "identityToken"

var (
	errNoToken      = errors.New("No token")
	errInvalidToken = errors.New("Invalid or expired token")
	errAdminOnly    = errors.New("Admin only")
)

// ContextWithToken stores the verified identity in the provided context.
func ContextWithToken(ctx context.Context, token *identity.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext retrieves the verified identity from context if present.
func TokenFromContext(ctx context.Context) (*identity.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*identity.Token)
	return token, ok && token != nil
}

// ExtractToken returns the credential of an "Authorization: Bearer" header.
func ExtractToken(r *http.Request) string {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

// authenticate verifies the bearer credential, checking revocation.
func (h *Handler) authenticate(r *http.Request) (*identity.Token, error) {
	raw := ExtractToken(r)
	if raw == "" {
		return nil, errNoToken
	}
	token, err := h.Identity.VerifyIDToken(r.Context(), raw, true)
	if err != nil {
		h.logger(r).Warn("token verification failed", "error", err)
		return nil, errInvalidToken
	}
	return token, nil
}

// RequireToken rejects requests without a valid ID token and stores the
// decoded identity on the request context.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := h.authenticate(r)
		if err != nil {
			h.rejectAuth(w, http.StatusUnauthorized, err)
			return
		}
		ctx := ContextWithToken(r.Context(), token)
		ctx = logging.ContextWithUserID(ctx, token.UID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireToken.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		if !ok || !token.IsAdmin() {
			h.rejectAuth(w, http.StatusForbidden, errAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) rejectAuth(w http.ResponseWriter, status int, err error) {
	reason := "invalid_token"
	switch {
	case errors.Is(err, errNoToken):
		reason = "no_token"
	case errors.Is(err, errAdminOnly):
		reason = "not_admin"
	}
	h.recorder().ObserveAuthFailure(reason)
	writeError(w, status, err)
}
