package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCORS(t *testing.T, cfg CORSConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	policy, err := newCORSPolicy(cfg)
	require.NoError(t, err)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	corsMiddleware(policy, nil, false, next).ServeHTTP(rec, req)
	return rec, called
}

func originRequest(method, path, origin string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Host = "api.portodas.org"
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSOriginMatching(t *testing.T) {
	cfg := CORSConfig{Origins: []string{"https://portodas.org", " https://*.preview.portodas.org "}}

	cases := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{name: "exact", origin: "https://portodas.org", allowed: true},
		{name: "exact case insensitive", origin: "HTTPS://Portodas.org", allowed: true},
		{name: "wildcard subdomain", origin: "https://pr-42.preview.portodas.org", allowed: true},
		{name: "wildcard needs a label", origin: "https://preview.portodas.org", allowed: false},
		{name: "wildcard keeps scheme", origin: "http://pr-42.preview.portodas.org", allowed: false},
		{name: "same origin", origin: "http://api.portodas.org", allowed: true},
		{name: "unknown", origin: "https://evil.example.com", allowed: false},
		{name: "malformed", origin: "portodas.org", allowed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, called := serveCORS(t, cfg, originRequest(http.MethodGet, "/api/public/posts", tc.origin))

			assert.Equal(t, tc.allowed, called)
			assert.Contains(t, rec.Header().Values("Vary"), "Origin")
			if tc.allowed {
				assert.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
				return
			}
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"error":"origin not allowed"}`, rec.Body.String())
		})
	}
}

func TestCORSReflectsAnyOriginWhenUnconfigured(t *testing.T) {
	rec, called := serveCORS(t, CORSConfig{}, originRequest(http.MethodGet, "/api/public/banners", "https://anywhere.example.net"))

	assert.True(t, called)
	assert.Equal(t, "https://anywhere.example.net", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	rec, called := serveCORS(t, CORSConfig{Origins: []string{"https://portodas.org"}}, originRequest(http.MethodGet, "/healthz", ""))

	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	cfg := CORSConfig{Origins: []string{"https://admin.portodas.org"}, MaxAge: time.Hour}

	req := originRequest(http.MethodOptions, "/api/admin/posts", "https://admin.portodas.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec, called := serveCORS(t, cfg, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, corsAllowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, corsAllowHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))

	req = originRequest(http.MethodOptions, "/api/admin/posts", "https://admin.portodas.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Request-Id")
	rec, _ = serveCORS(t, cfg, req)
	assert.Equal(t, "Authorization, X-Request-Id", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSPlainOptionsReachesRouter(t *testing.T) {
	_, called := serveCORS(t, CORSConfig{}, originRequest(http.MethodOptions, "/api/public/posts", "https://portodas.org"))
	assert.True(t, called)
}

func TestNewCORSPolicyRejectsMalformedOrigins(t *testing.T) {
	for _, origin := range []string{"portodas.org", "https://portodas.org/admin"} {
		_, err := newCORSPolicy(CORSConfig{Origins: []string{origin}})
		assert.Error(t, err, origin)
	}

	policy, err := newCORSPolicy(CORSConfig{})
	require.NoError(t, err)
	assert.Equal(t, "600", policy.maxAge)
}
