// Package identity verifies ID tokens and manages the accounts allowed to use
// the admin API.
package identity

import (
	"context"
	"errors"
	"time"
)

// Error codes reported by providers.
const (
	CodeEmailAlreadyExists = "auth/email-already-exists"
	CodeUserNotFound       = "auth/user-not-found"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeInvalidPassword    = "auth/invalid-password"
	CodeIDTokenExpired     = "auth/id-token-expired"
	CodeIDTokenRevoked     = "auth/id-token-revoked"
	CodeArgumentError      = "auth/argument-error"
	CodeUserDisabled       = "auth/user-disabled"
)

// AdminClaim is the custom claim granting admin access.
const AdminClaim = "admin"

// Error is a provider failure carrying a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code of an *Error in err's chain, or "".
func CodeOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

// Token is a verified ID token.
type Token struct {
	UID       string
	Email     string
	Claims    map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the admin claim is exactly boolean true.
func (t *Token) IsAdmin() bool {
	if t == nil {
		return false
	}
	admin, ok := t.Claims[AdminClaim].(bool)
	return ok && admin
}

// UserRecord is an account as returned to administrators.
type UserRecord struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"displayName,omitempty"`
	Disabled     bool           `json:"disabled"`
	CustomClaims map[string]any `json:"customClaims,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// UserToCreate describes a new account.
type UserToCreate struct {
	Email       string
	Password    string
	DisplayName string
}

// SignedToken is a freshly issued ID token.
type SignedToken struct {
	IDToken   string    `json:"idToken"`
	ExpiresAt time.Time `json:"expiresAt"`
	UID       string    `json:"uid"`
}

// Provider is the identity backend. Failures that callers may translate are
// returned as *Error.
type Provider interface {
	VerifyIDToken(ctx context.Context, raw string, checkRevoked bool) (*Token, error)
	CreateUser(ctx context.Context, user UserToCreate) (UserRecord, error)
	GetUser(ctx context.Context, uid string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	ListUsers(ctx context.Context) ([]UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error
	DeleteUser(ctx context.Context, uid string) error
	SignIn(ctx context.Context, email, password string) (SignedToken, error)
	IssueToken(ctx context.Context, uid string) (SignedToken, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}
