package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrBlobMissing is returned when a banner references a blob that does
	// not exist.
	ErrBlobMissing = errors.New("storage: blob not found")
	// ErrBlobStoreUnavailable is returned by banner operations when no blob
	// store was configured.
	ErrBlobStoreUnavailable = errors.New("storage: blob store not configured")
)

// IntegrityError reports a stored document lacking a field its resource
// requires. It indicates corrupt data rather than bad input.
type IntegrityError struct {
	Collection string
	ID         string
	Field      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("storage: document %s/%s is missing required field %q", e.Collection, e.ID, e.Field)
}
