package storage

import (
	"context"
	"fmt"
	"math"

	"portodas-api/internal/docstore"
)

// NextOrder scans every document of coll and returns one more than the
// largest numeric value of field, or 1 when there is none. Missing and
// non-numeric values count as 0. The result is computed from live state on
// every call.
func NextOrder(ctx context.Context, coll docstore.Collection, field string) (int, error) {
	docs, err := coll.List(ctx, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("scan %s for %s: %w", coll.Name(), field, err)
	}
	maxOrder := 0.0
	for _, doc := range docs {
		if value, ok := docstore.NumericField(doc.Data, field); ok && value > maxOrder {
			maxOrder = value
		}
	}
	return int(math.Floor(maxOrder)) + 1, nil
}
