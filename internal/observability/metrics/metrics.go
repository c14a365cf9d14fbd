package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portodas"

// Recorder owns a Prometheus registry and the collectors for HTTP traffic,
// repository operations, uploads, rate limiting and authentication.
type Recorder struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	uploadBytes  prometheus.Counter
	rateLimited  *prometheus.CounterVec
	authFailures *prometheus.CounterVec
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

// New constructs a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, normalized path and status.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and normalized path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Repository operations by resource, operation and outcome.",
		}, []string{"resource", "operation", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "File uploads by destination and outcome.",
		}, []string{"destination", "outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written by successful uploads.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"scope"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected requests by guard reason.",
		}, []string{"reason"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.duration,
		r.storeOps,
		r.uploads,
		r.uploadBytes,
		r.rateLimited,
		r.authFailures,
	)
	return r
}

// Default returns the process-wide Recorder.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault replaces the process-wide Recorder. Nil is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// ObserveRequest counts a request and records its latency.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	path = normalizePath(path)
	r.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStoreOperation counts a repository call. Outcome is "ok",
// "not_found", "invalid" or "error".
func (r *Recorder) ObserveStoreOperation(resource, operation, outcome string) {
	r.storeOps.WithLabelValues(normalizeName(resource), normalizeName(operation), normalizeName(outcome)).Inc()
}

// ObserveUpload counts an upload attempt, adding size to the byte total on
// success.
func (r *Recorder) ObserveUpload(destination string, size int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.uploads.WithLabelValues(normalizeName(destination), outcome).Inc()
	if err == nil && size > 0 {
		r.uploadBytes.Add(float64(size))
	}
}

// ObserveRateLimited counts a rejection by the named limiter.
func (r *Recorder) ObserveRateLimited(scope string) {
	r.rateLimited.WithLabelValues(normalizeName(scope)).Inc()
}

// ObserveAuthFailure counts a request rejected by the auth guard.
func (r *Recorder) ObserveAuthFailure(reason string) {
	r.authFailures.WithLabelValues(normalizeName(reason)).Inc()
}

// Registry exposes the underlying registry for additional collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// normalizePath replaces identifier-like segments with :id to bound label
// cardinality.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part != "" && looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

var knownSegments = map[string]bool{
	"testimonials": true, "iniciativas": true, "initiatives": true, "canaisDenuncia": true,
	"report-channels": true, "naoSeCale": true, "do-not-be-silent": true, "porqueAderimos": true,
	"why-we-joined": true, "sections": true, "reports": true, "banners": true, "lastPosts": true,
	"documents": true, "signed-url": true, "healthz": true, "metrics": true,
}

func looksLikeIdentifier(segment string) bool {
	if knownSegments[segment] {
		return false
	}
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
