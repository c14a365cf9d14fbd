package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// generateProtocol returns a report protocol such as 20240510-9F2C41AB: the
// submission date followed by the first eight hex digits of a random UUID.
func generateProtocol(now time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate protocol: %w", err)
	}
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:8]
	return now.UTC().Format("20060102") + "-" + suffix, nil
}
