package storage

import (
	"context"
	"errors"
	"fmt"

	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

// Legacy reads collections that are managed outside this service and served
// as stored.
type Legacy struct {
	store docstore.Store
}

func (l *Legacy) List(ctx context.Context, collection string) ([]models.LegacyDocument, error) {
	docs, err := l.store.Collection(collection).List(ctx, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]models.LegacyDocument, 0, len(docs))
	for _, doc := range docs {
		out = append(out, l.toLegacy(doc))
	}
	return out, nil
}

func (l *Legacy) Get(ctx context.Context, collection, id string) (models.LegacyDocument, error) {
	doc, err := l.store.Collection(collection).Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return l.toLegacy(doc), nil
}

func (l *Legacy) toLegacy(doc docstore.Document) models.LegacyDocument {
	out := models.LegacyDocument{}
	for key, value := range doc.Data {
		out[key] = value
	}
	out["id"] = doc.ID
	if !doc.CreatedAt.IsZero() {
		out["createdAt"] = doc.CreatedAt
	}
	if !doc.UpdatedAt.IsZero() {
		out["updatedAt"] = doc.UpdatedAt
	}
	return out
}
