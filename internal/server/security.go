package server

import "net/http"

const (
	defaultFrameAncestors            = "'none'"
	defaultFrameOptions              = "DENY"
	defaultReferrerPolicy            = "no-referrer"
	defaultPermissionsPolicy         = "camera=(), microphone=(), geolocation=()"
	defaultContentTypeOptions        = "nosniff"
	defaultStrictTransportSecurity   = "max-age=15552000; includeSubDomains"
	defaultCrossOriginResourcePolicy = "same-origin"
)

// SecurityConfig controls the hardening headers added to every response.
// Zero-valued fields fall back to defaults suited to a JSON API.
type SecurityConfig struct {
	ContentSecurityPolicy     string
	FrameAncestors            string
	FrameOptions              string
	ReferrerPolicy            string
	PermissionsPolicy         string
	ContentTypeOptions        string
	StrictTransportSecurity   string
	CrossOriginResourcePolicy string
}

func defaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		ContentSecurityPolicy:     defaultContentSecurityPolicy(defaultFrameAncestors),
		FrameAncestors:            defaultFrameAncestors,
		FrameOptions:              defaultFrameOptions,
		ReferrerPolicy:            defaultReferrerPolicy,
		PermissionsPolicy:         defaultPermissionsPolicy,
		ContentTypeOptions:        defaultContentTypeOptions,
		StrictTransportSecurity:   defaultStrictTransportSecurity,
		CrossOriginResourcePolicy: defaultCrossOriginResourcePolicy,
	}
}

func (cfg SecurityConfig) withDefaults() SecurityConfig {
	defaults := defaultSecurityConfig()

	if cfg.FrameAncestors == "" {
		cfg.FrameAncestors = defaults.FrameAncestors
	}
	if cfg.FrameOptions == "" {
		cfg.FrameOptions = defaults.FrameOptions
	}
	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = defaults.ReferrerPolicy
	}
	if cfg.PermissionsPolicy == "" {
		cfg.PermissionsPolicy = defaults.PermissionsPolicy
	}
	if cfg.ContentTypeOptions == "" {
		cfg.ContentTypeOptions = defaults.ContentTypeOptions
	}
	if cfg.StrictTransportSecurity == "" {
		cfg.StrictTransportSecurity = defaults.StrictTransportSecurity
	}
	if cfg.CrossOriginResourcePolicy == "" {
		cfg.CrossOriginResourcePolicy = defaults.CrossOriginResourcePolicy
	}
	if cfg.ContentSecurityPolicy == "" {
		cfg.ContentSecurityPolicy = defaultContentSecurityPolicy(cfg.FrameAncestors)
	}

	return cfg
}

// The API only serves JSON, so nothing may be loaded from its responses.
func defaultContentSecurityPolicy(frameAncestors string) string {
	value := frameAncestors
	if value == "" {
		value = defaultFrameAncestors
	}
	return "default-src 'none'; base-uri 'none'; form-action 'none'; frame-ancestors " + value
}

func securityHeadersMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	effective := cfg.withDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Content-Security-Policy", effective.ContentSecurityPolicy)
		header.Set("X-Frame-Options", effective.FrameOptions)
		header.Set("X-Content-Type-Options", effective.ContentTypeOptions)
		header.Set("Referrer-Policy", effective.ReferrerPolicy)
		header.Set("Permissions-Policy", effective.PermissionsPolicy)
		header.Set("Cross-Origin-Resource-Policy", effective.CrossOriginResourcePolicy)
		if r.TLS != nil {
			header.Set("Strict-Transport-Security", effective.StrictTransportSecurity)
		}

		next.ServeHTTP(w, r)
	})
}
