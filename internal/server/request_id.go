package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"portodas-api/internal/observability/logging"
)

const (
	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 128
)

// requestIDs tags each request with an identifier, reusing a well-formed
// X-Request-Id sent by the caller or a proxy.
type requestIDs struct {
	newID func() string
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return requestIDs{newID: uuid.NewString}.wrap(next)
}

func (ids requestIDs) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if !validRequestID(id) {
			id = ids.newID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// validRequestID accepts short printable ASCII tokens so that ids can be
// echoed into headers and logs verbatim.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
