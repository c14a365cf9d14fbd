package identity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portodas-api/internal/docstore"
)

// UsersCollection holds the accounts of the local provider.
const UsersCollection = "identityUsers"

const (
	defaultIssuer   = "portodas-api"
	defaultTokenTTL = time.Hour
	minSecretLength = 16
)

// Local is a Provider keeping accounts in a docstore collection and signing
// HS256 ID tokens.
type Local struct {
	users  docstore.Collection
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	// createMu pairs the email lookup with the insert inside one process.
	// The documents_identity_email_key index covers separate processes.
	createMu sync.Mutex
}

// LocalOption configures a Local provider.
type LocalOption func(*Local)

// WithIssuer sets the iss claim written and required on tokens.
func WithIssuer(issuer string) LocalOption {
	return func(l *Local) {
		if issuer != "" {
			l.issuer = issuer
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) LocalOption {
	return func(l *Local) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock overrides the provider clock.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLocal builds the provider over store's identity collection.
func NewLocal(store docstore.Store, secret []byte, opts ...LocalOption) (*Local, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("identity: signing secret must be at least %d bytes", minSecretLength)
	}
	l := &Local{
		users:  store.Collection(UsersCollection),
		secret: append([]byte(nil), secret...),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type idClaims struct {
	Email  string         `json:"email,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// VerifyIDToken checks signature, issuer and expiry. With checkRevoked the
// account must still exist, be enabled, and not have revoked tokens issued
// before its tokensValidAfter mark; the returned claims are then the
// account's current ones.
func (l *Local) VerifyIDToken(ctx context.Context, raw string, checkRevoked bool) (*Token, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, newError(CodeArgumentError, "empty ID token")
	}
	var claims idClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(l.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(CodeIDTokenExpired, "ID token has expired")
		}
		return nil, newError(CodeArgumentError, err.Error())
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, newError(CodeArgumentError, "ID token lacks subject or issue time")
	}
	token := &Token{
		UID:       claims.Subject,
		Email:     claims.Email,
		Claims:    claims.Claims,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if token.Claims == nil {
		token.Claims = map[string]any{}
	}
	if !checkRevoked {
		return token, nil
	}
	account, err := l.load(ctx, token.UID)
	if err != nil {
		return nil, err
	}
	if account.disabled {
		return nil, newError(CodeUserDisabled, "account is disabled")
	}
	if account.validAfter > 0 && token.IssuedAt.Unix() < account.validAfter {
		return nil, newError(CodeIDTokenRevoked, "ID token has been revoked")
	}
	// The stored claims win over the signed ones, so a demotion takes
	// effect before the token expires.
	token.Claims = maps.Clone(account.record.CustomClaims)
	if token.Claims == nil {
		token.Claims = map[string]any{}
	}
	return token, nil
}

func (l *Local) CreateUser(ctx context.Context, user UserToCreate) (UserRecord, error) {
	email, err := normalizeEmail(user.Email)
	if err != nil {
		return UserRecord{}, err
	}
	if user.Password == "" {
		return UserRecord{}, newError(CodeInvalidPassword, "password is required")
	}
	if len(user.Password) < minPasswordLength {
		return UserRecord{}, newError(CodeWeakPassword, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hashed, err := hashPassword(user.Password)
	if err != nil {
		return UserRecord{}, fmt.Errorf("hash password: %w", err)
	}

	l.createMu.Lock()
	defer l.createMu.Unlock()
	if _, err := l.findByEmail(ctx, email); err == nil {
		return UserRecord{}, errEmailTaken()
	} else if CodeOf(err) != CodeUserNotFound {
		return UserRecord{}, err
	}
	uid, err := l.users.Add(ctx, map[string]any{
		"email":        email,
		"passwordHash": hashed,
		"displayName":  strings.TrimSpace(user.DisplayName),
		"disabled":     false,
		"customClaims": map[string]any{},
	})
	if errors.Is(err, docstore.ErrConflict) {
		return UserRecord{}, errEmailTaken()
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return l.GetUser(ctx, uid)
}

func errEmailTaken() error {
	return newError(CodeEmailAlreadyExists, "an account already uses this email")
}

func (l *Local) GetUser(ctx context.Context, uid string) (UserRecord, error) {
	account, err := l.load(ctx, uid)
	if err != nil {
		return UserRecord{}, err
	}
	return account.record, nil
}

func (l *Local) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return UserRecord{}, err
	}
	account, err := l.findByEmail(ctx, normalized)
	if err != nil {
		return UserRecord{}, err
	}
	return account.record, nil
}

func (l *Local) ListUsers(ctx context.Context) ([]UserRecord, error) {
	docs, err := l.users.List(ctx, docstore.Query{OrderBy: docstore.FieldCreatedAt})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	records := make([]UserRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toAccount(doc).record)
	}
	return records, nil
}

// SetCustomUserClaims replaces the account's custom claims. Tokens issued
// earlier carry the old claims, which only VerifyIDToken without the
// revocation check reports.
func (l *Local) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error {
	if claims == nil {
		claims = map[string]any{}
	}
	return l.update(ctx, uid, map[string]any{"customClaims": claims})
}

func (l *Local) DeleteUser(ctx context.Context, uid string) error {
	if err := l.users.Delete(ctx, uid); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return newError(CodeUserNotFound, "no account for uid "+uid)
		}
		return fmt.Errorf("delete user %s: %w", uid, err)
	}
	return nil
}

// SignIn exchanges email and password for an ID token. Unknown accounts and
// wrong passwords are reported alike.
func (l *Local) SignIn(ctx context.Context, email, password string) (SignedToken, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return SignedToken{}, err
	}
	account, err := l.findByEmail(ctx, normalized)
	if err != nil {
		if CodeOf(err) == CodeUserNotFound {
			return SignedToken{}, newError(CodeInvalidPassword, "invalid email or password")
		}
		return SignedToken{}, err
	}
	rehash, err := verifyPassword(account.passwordHash, password)
	if err != nil {
		return SignedToken{}, newError(CodeInvalidPassword, "invalid email or password")
	}
	if account.disabled {
		return SignedToken{}, newError(CodeUserDisabled, "account is disabled")
	}
	if rehash {
		if upgraded, err := hashPassword(password); err == nil {
			// Failing to upgrade must not block the sign-in.
			_ = l.update(ctx, account.record.UID, map[string]any{"passwordHash": upgraded})
		}
	}
	return l.sign(account.record)
}

// IssueToken signs a token for uid without a password, for operators.
func (l *Local) IssueToken(ctx context.Context, uid string) (SignedToken, error) {
	account, err := l.load(ctx, uid)
	if err != nil {
		return SignedToken{}, err
	}
	return l.sign(account.record)
}

// RevokeRefreshTokens invalidates every token issued before now.
func (l *Local) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return l.update(ctx, uid, map[string]any{"tokensValidAfter": l.now().Unix()})
}

func (l *Local) sign(record UserRecord) (SignedToken, error) {
	now := l.now()
	expires := now.Add(l.ttl)
	claims := idClaims{
		Email:  record.Email,
		Claims: record.CustomClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    l.issuer,
			Subject:   record.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return SignedToken{IDToken: signed, ExpiresAt: expires.UTC(), UID: record.UID}, nil
}

func (l *Local) update(ctx context.Context, uid string, fields map[string]any) error {
	if err := l.users.Update(ctx, uid, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return newError(CodeUserNotFound, "no account for uid "+uid)
		}
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	return nil
}

type account struct {
	record       UserRecord
	passwordHash string
	disabled     bool
	validAfter   int64
}

func (l *Local) load(ctx context.Context, uid string) (account, error) {
	if strings.TrimSpace(uid) == "" {
		return account{}, newError(CodeArgumentError, "uid is required")
	}
	doc, err := l.users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return account{}, newError(CodeUserNotFound, "no account for uid "+uid)
		}
		return account{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return toAccount(doc), nil
}

func (l *Local) findByEmail(ctx context.Context, email string) (account, error) {
	docs, err := l.users.List(ctx, docstore.Query{
		Where: []docstore.Filter{{Field: "email", Value: email}},
		Limit: 1,
	})
	if err != nil {
		return account{}, fmt.Errorf("find user by email: %w", err)
	}
	if len(docs) == 0 {
		return account{}, newError(CodeUserNotFound, "no account for "+email)
	}
	return toAccount(docs[0]), nil
}

func toAccount(doc docstore.Document) account {
	email, _ := doc.Data["email"].(string)
	displayName, _ := doc.Data["displayName"].(string)
	disabled, _ := doc.Data["disabled"].(bool)
	hash, _ := doc.Data["passwordHash"].(string)
	claims, _ := doc.Data["customClaims"].(map[string]any)
	validAfter, _ := docstore.NumericField(doc.Data, "tokensValidAfter")
	if claims == nil {
		claims = map[string]any{}
	}
	return account{
		record: UserRecord{
			UID:          doc.ID,
			Email:        email,
			DisplayName:  displayName,
			Disabled:     disabled,
			CustomClaims: claims,
			CreatedAt:    doc.CreatedAt,
		},
		passwordHash: hash,
		disabled:     disabled,
		validAfter:   int64(math.Floor(validAfter)),
	}
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", newError(CodeInvalidEmail, "email is required")
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		return "", newError(CodeInvalidEmail, "invalid email address")
	}
	return trimmed, nil
}
