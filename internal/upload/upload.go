// Package upload writes user files to the blob store under collision
// resistant names and hands out presigned upload URLs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"portodas-api/internal/blob"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// SignedURLExpiry is the lifetime of presigned upload URLs.
const SignedURLExpiry = 10 * time.Minute

var (
	ErrNoFile        = errors.New("upload: no file")
	ErrNoDestination = errors.New("upload: no destination")
	ErrTooLarge      = errors.New("upload: file too large")
	ErrInvalidKind   = errors.New("upload: invalid upload kind")

	// ErrInvalidDestination rejects folders with empty, "." or ".." segments.
	ErrInvalidDestination = errors.New("upload: invalid destination")
)

// File is a fully buffered upload.
type File struct {
	Data        []byte
	ContentType string
	Name        string
}

// Result locates a stored upload.
type Result struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
}

// SignedURL is a presigned destination for a direct client upload.
type SignedURL struct {
	UploadURL   string `json:"uploadUrl"`
	StoragePath string `json:"storagePath"`
}

// Service stores uploads in one bucket.
type Service struct {
	blobs    blob.Store
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// Option configures a Service.
type Option func(*Service)

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for name stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service writing to blobs.
func NewService(blobs blob.Store, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes reports the upload ceiling.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// CleanDestination normalises a destination folder: surrounding slashes are
// dropped and backslashes read as separators. Empty, "." and ".." segments
// are rejected rather than resolved, so the folder a caller names is the
// folder the object lands in.
func CleanDestination(destination string) (string, error) {
	trimmed := strings.Trim(strings.ReplaceAll(strings.TrimSpace(destination), "\\", "/"), "/")
	if trimmed == "" {
		return "", ErrNoDestination
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
		}
	}
	return trimmed, nil
}

// TopFolder returns the first segment of a cleaned destination.
func TopFolder(destination string) string {
	top, _, _ := strings.Cut(destination, "/")
	return top
}

// Store writes file under destination and makes it public. A failed publish
// removes the written object before returning the error.
func (s *Service) Store(ctx context.Context, file File, destination string) (Result, error) {
	if len(file.Data) == 0 {
		return Result{}, ErrNoFile
	}
	destination, err := CleanDestination(destination)
	if err != nil {
		return Result{}, err
	}
	if int64(len(file.Data)) > s.maxBytes {
		return Result{}, ErrTooLarge
	}

	name := s.objectName(destination, file.Name)
	if err := s.blobs.Put(ctx, name, file.ContentType, file.Data); err != nil {
		return Result{}, fmt.Errorf("store %s: %w", name, err)
	}
	if err := s.blobs.MakePublic(ctx, name); err != nil {
		s.Discard(ctx, name)
		return Result{}, fmt.Errorf("publish %s: %w", name, err)
	}
	s.logger.Debug("upload stored", "path", name, "bytes", len(file.Data), "content_type", file.ContentType)
	return Result{URL: s.blobs.PublicURL(name), StoragePath: name}, nil
}

// Discard deletes a stored upload whose owning record could not be saved.
// Failures are logged, not returned.
func (s *Service) Discard(ctx context.Context, storagePath string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), storagePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.logger.Warn("failed to discard upload", "path", storagePath, "error", err)
	}
}

// SignedUploadURL presigns a PUT under the folder for kind: banner uploads go
// to banners/, report attachments to reports/.
func (s *Service) SignedUploadURL(ctx context.Context, kind, filename, contentType string) (SignedURL, error) {
	if err := ctx.Err(); err != nil {
		return SignedURL{}, err
	}
	folder, err := folderFor(kind)
	if err != nil {
		return SignedURL{}, err
	}
	name := s.objectName(folder, filename)
	uploadURL, err := s.blobs.SignedPutURL(name, contentType, SignedURLExpiry)
	if err != nil {
		return SignedURL{}, fmt.Errorf("sign %s: %w", name, err)
	}
	return SignedURL{UploadURL: uploadURL, StoragePath: name}, nil
}

func folderFor(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "banner":
		return "banners", nil
	case "report":
		return "reports", nil
	default:
		return "", ErrInvalidKind
	}
}

func (s *Service) objectName(destination, filename string) string {
	return destination + "/" + strconv.FormatInt(s.stamp(), 10) + "_" + SanitizeName(filename)
}

// stamp returns unix milliseconds, bumped so that no two calls in this
// process share a value.
func (s *Service) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UnixMilli()
	if now <= s.lastStamp {
		now = s.lastStamp + 1
	}
	s.lastStamp = now
	return now
}

var nameCleaner = transform.Chain(
	norm.NFC,
	runes.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}),
)

// SanitizeName NFC-normalises a client file name and replaces path
// separators and control characters. Empty names become "file".
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	cleaned, _, err := transform.String(nameCleaner, base)
	if err != nil {
		cleaned = base
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
