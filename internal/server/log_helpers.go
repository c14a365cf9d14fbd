package server

import (
	"log/slog"
	"net/http"

	"portodas-api/internal/observability/logging"
)

// loggingWithRequest returns a logger annotated with the request ID from the
// context, the path and the resolved client address.
func loggingWithRequest(base *slog.Logger, r *http.Request, trustProxy bool) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return logging.WithContext(r.Context(), base).With(
		"path", r.URL.Path,
		"remote_ip", clientIPFromRequest(r, trustProxy),
	)
}
