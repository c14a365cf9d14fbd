package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portodas-api/internal/blob"
	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// BlobStore is the part of the blob store used to manage banner images.
type BlobStore interface {
	Stat(ctx context.Context, name string) (blob.ObjectInfo, error)
	MakePublic(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	PublicURL(name string) string
}

// Banners stores banner metadata. Each banner owns the blob at its
// storagePath.
type Banners struct {
	c     collection[models.Banner]
	blobs BlobStore
}

func newBanners(coll docstore.Collection, cfg options) *Banners {
	sort := docstore.Query{OrderBy: docstore.FieldCreatedAt, Desc: true}
	return &Banners{c: newCollection(coll, sort, cfg, mapBanner), blobs: cfg.blobs}
}

func mapBanner(r *docReader) models.Banner {
	return models.Banner{
		ID:          r.doc.ID,
		StoragePath: r.required("storagePath"),
		Alt:         r.str("alt"),
		Link:        r.str("link"),
		ContentType: r.str("contentType"),
		URL:         r.str("url"),
		IsActive:    r.bool("isActive", true),
		CreatedAt:   r.createdAt(),
		UpdatedAt:   r.updatedAt(),
	}
}

func (b *Banners) List(ctx context.Context) ([]models.Banner, error) {
	return b.c.list(ctx)
}

// ListActive returns the banners flagged active, newest first.
func (b *Banners) ListActive(ctx context.Context) ([]models.Banner, error) {
	q := b.c.sort
	q.Where = []docstore.Filter{{Field: "isActive", Value: true}}
	return b.c.query(ctx, q)
}

func (b *Banners) Get(ctx context.Context, id string) (models.Banner, error) {
	return b.c.get(ctx, id)
}

// Confirm records a banner for a blob already written to the store. The blob
// is made public and its content type copied from the blob metadata.
func (b *Banners) Confirm(ctx context.Context, in models.BannerInput) (models.Banner, error) {
	if b.blobs == nil {
		return models.Banner{}, ErrBlobStoreUnavailable
	}
	path := strings.TrimSpace(in.StoragePath)
	info, err := b.blobs.Stat(ctx, path)
	if errors.Is(err, blob.ErrNotFound) {
		return models.Banner{}, ErrBlobMissing
	}
	if err != nil {
		return models.Banner{}, fmt.Errorf("stat banner blob %s: %w", path, err)
	}
	if err := b.blobs.MakePublic(ctx, path); err != nil {
		return models.Banner{}, fmt.Errorf("publish banner blob %s: %w", path, err)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	fields := fieldSet{
		"storagePath": path,
		"alt":         in.Alt,
		"link":        in.Link,
		"contentType": info.ContentType,
		"url":         b.blobs.PublicURL(path),
		"isActive":    isActive,
	}
	return b.c.create(ctx, fields)
}

func (b *Banners) Update(ctx context.Context, id string, patch models.BannerPatch) (models.Banner, error) {
	fields := fieldSet{}
	fields.setString("alt", patch.Alt)
	fields.setString("link", patch.Link)
	fields.setBool("isActive", patch.IsActive)
	return b.c.update(ctx, id, fields)
}

// Delete removes the banner's blob, tolerating one that is already gone, and
// then the banner itself.
func (b *Banners) Delete(ctx context.Context, id string) error {
	banner, err := b.c.get(ctx, id)
	if err != nil {
		return err
	}
	if b.blobs == nil {
		return ErrBlobStoreUnavailable
	}
	if err := b.blobs.Delete(ctx, banner.StoragePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete banner blob %s: %w", banner.StoragePath, err)
	}
	return b.c.remove(ctx, id)
}
