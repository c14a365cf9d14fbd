// Package blob stores binary objects in a bucket. The S3 backend speaks the
// S3 XML API with SigV4 signing, which Google Cloud Storage also accepts
// through its interoperability endpoint.
package blob

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when the named object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// ErrUnsigned is returned by SignedPutURL when no credentials are configured.
var ErrUnsigned = errors.New("blob: signing credentials not configured")

// DefaultPublicBaseURL prefixes public object URLs when none is configured.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Name        string
	ContentType string
	Size        int64
}

// Store is a single bucket.
type Store interface {
	Bucket() string
	Put(ctx context.Context, name, contentType string, data []byte) error
	MakePublic(ctx context.Context, name string) error
	Stat(ctx context.Context, name string) (ObjectInfo, error)
	Delete(ctx context.Context, name string) error
	// PublicURL is the address of name once it is public.
	PublicURL(name string) string
	// SignedPutURL returns a URL accepting a single PUT of name with the given
	// content type until expires elapses.
	SignedPutURL(name, contentType string, expires time.Duration) (string, error)
}

func publicURL(base, bucket, name string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultPublicBaseURL
	}
	return base + "/" + strings.Trim(bucket, "/") + "/" + strings.TrimLeft(name, "/")
}
