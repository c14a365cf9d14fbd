package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the browser origins allowed to call the API. Entries may
// use a leading wildcard label ("https://*.portodas.org") to admit preview
// deployments. With no entries every origin is reflected back, which matches
// how the public site has always been served.
type CORSConfig struct {
	Origins []string
	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration
}

const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization"
	corsExposeHeaders = "Content-Disposition, X-Request-Id"
	defaultCORSMaxAge = 10 * time.Minute
)

type originPattern struct {
	scheme string
	// suffix is set for wildcard entries and holds ".example.org".
	suffix string
	host   string
}

type corsPolicy struct {
	exact    map[string]bool
	patterns []originPattern
	maxAge   string
}

func newCORSPolicy(cfg CORSConfig) (corsPolicy, error) {
	policy := corsPolicy{exact: make(map[string]bool)}
	for _, raw := range cfg.Origins {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		scheme, host, err := splitOrigin(entry)
		if err != nil {
			return corsPolicy{}, fmt.Errorf("parse origin %q: %w", raw, err)
		}
		if rest, ok := strings.CutPrefix(host, "*."); ok {
			policy.patterns = append(policy.patterns, originPattern{scheme: scheme, suffix: "." + rest})
			continue
		}
		policy.exact[scheme+"://"+host] = true
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	policy.maxAge = strconv.Itoa(int(maxAge.Seconds()))
	return policy, nil
}

// splitOrigin returns the lower-cased scheme and host of an origin.
func splitOrigin(origin string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", "", fmt.Errorf("origin must include scheme and host")
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return "", "", fmt.Errorf("origin must not include a path")
	}
	return strings.ToLower(parsed.Scheme), strings.ToLower(parsed.Host), nil
}

func (p corsPolicy) reflectsAny() bool {
	return len(p.exact) == 0 && len(p.patterns) == 0
}

// allows reports whether origin may read responses to r. Requests coming
// from the API's own origin are always allowed.
func (p corsPolicy) allows(origin string, r *http.Request) bool {
	scheme, host, err := splitOrigin(origin)
	if err != nil {
		return false
	}
	if p.reflectsAny() || p.exact[scheme+"://"+host] {
		return true
	}
	for _, pattern := range p.patterns {
		if pattern.scheme == scheme && strings.HasSuffix(host, pattern.suffix) {
			return true
		}
	}
	return scheme+"://"+host == selfOrigin(r)
}

func selfOrigin(r *http.Request) string {
	host := strings.ToLower(strings.TrimSpace(r.Host))
	if host == "" {
		return ""
	}
	if r.TLS != nil {
		return "https://" + host
	}
	return "http://" + host
}

func (p corsPolicy) writePreflight(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		header.Set("Access-Control-Allow-Headers", requested)
	} else {
		header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	}
	header.Set("Access-Control-Max-Age", p.maxAge)
	w.WriteHeader(http.StatusNoContent)
}

func corsMiddleware(policy corsPolicy, logger *slog.Logger, trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := w.Header()
		header.Add("Vary", "Origin")
		if !policy.allows(origin, r) {
			loggingWithRequest(logger, r, trustProxy).Warn("blocked CORS origin", "origin", origin)
			writeMiddlewareError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			policy.writePreflight(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
