package blob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// S3Config configures the S3-compatible backend.
type S3Config struct {
	// Endpoint is a host or URL. Without a scheme, UseSSL selects https.
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	PublicBaseURL  string
	RequestTimeout time.Duration
}

// S3 implements Store over the S3 XML API.
type S3 struct {
	cfg        S3Config
	endpoint   *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// S3Option customises an S3 store.
type S3Option func(*S3)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) S3Option {
	return func(s *S3) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithS3Clock overrides the signing clock.
func WithS3Clock(now func() time.Time) S3Option {
	return func(s *S3) {
		if now != nil {
			s.now = now
		}
	}
}

// NewS3 validates cfg and builds the store.
func NewS3(cfg S3Config, opts ...S3Option) (*S3, error) {
	cfg.Bucket = strings.Trim(strings.TrimSpace(cfg.Bucket), "/")
	if cfg.Bucket == "" {
		return nil, errors.New("blob: bucket is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	endpoint, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	s := &S3{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func parseEndpoint(raw string, useSSL bool) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultPublicBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		trimmed = scheme + "://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("blob: parse endpoint %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("blob: endpoint %q has no host", raw)
	}
	return &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: strings.TrimRight(parsed.Path, "/")}, nil
}

func (s *S3) Bucket() string { return s.cfg.Bucket }

func (s *S3) PublicURL(name string) string {
	return publicURL(s.cfg.PublicBaseURL, s.cfg.Bucket, name)
}

func (s *S3) Put(ctx context.Context, name, contentType string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(name).String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response, err := s.do(request, hashSHA256Hex(data))
	if err != nil {
		return fmt.Errorf("upload object %s: %w", name, err)
	}
	defer drain(response)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("upload object %s: unexpected status %d", name, response.StatusCode)
	}
	return nil
}

// MakePublic applies the public-read canned ACL.
func (s *S3) MakePublic(ctx context.Context, name string) error {
	target := s.objectURL(name)
	target.RawQuery = "acl="
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create acl request: %w", err)
	}
	request.Header.Set("x-amz-acl", "public-read")
	response, err := s.do(request, emptyPayloadHash)
	if err != nil {
		return fmt.Errorf("publish object %s: %w", name, err)
	}
	defer drain(response)
	switch {
	case response.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return fmt.Errorf("publish object %s: unexpected status %d", name, response.StatusCode)
	}
	return nil
}

func (s *S3) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(name).String(), nil)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create stat request: %w", err)
	}
	response, err := s.do(request, emptyPayloadHash)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", name, err)
	}
	defer drain(response)
	switch {
	case response.StatusCode == http.StatusNotFound:
		return ObjectInfo{}, ErrNotFound
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return ObjectInfo{}, fmt.Errorf("stat object %s: unexpected status %d", name, response.StatusCode)
	}
	size := response.ContentLength
	if size < 0 {
		size, _ = strconv.ParseInt(response.Header.Get("Content-Length"), 10, 64)
	}
	return ObjectInfo{Name: name, ContentType: response.Header.Get("Content-Type"), Size: size}, nil
}

func (s *S3) Delete(ctx context.Context, name string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(name).String(), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	response, err := s.do(request, emptyPayloadHash)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	defer drain(response)
	switch {
	case response.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return fmt.Errorf("delete object %s: unexpected status %d", name, response.StatusCode)
	}
	return nil
}

func (s *S3) do(request *http.Request, payloadHash string) (*http.Response, error) {
	s.signRequest(request, payloadHash)
	return s.httpClient.Do(request)
}

func drain(response *http.Response) {
	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()
}

func (s *S3) objectURL(name string) *url.URL {
	path := s.endpoint.Path + "/" + s.cfg.Bucket
	if key := strings.TrimLeft(name, "/"); key != "" {
		path += "/" + key
	}
	u := *s.endpoint
	u.Path = path
	return &u
}

func (s *S3) credentials() (string, string, bool) {
	accessKey := strings.TrimSpace(s.cfg.AccessKey)
	secretKey := strings.TrimSpace(s.cfg.SecretKey)
	return accessKey, secretKey, accessKey != "" && secretKey != ""
}

// signRequest adds SigV4 headers. Requests go out unsigned when no
// credentials are configured.
func (s *S3) signRequest(req *http.Request, payloadHash string) {
	req.Host = req.URL.Host
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	accessKey, secretKey, ok := s.credentials()
	if !ok {
		return
	}
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	req.Header.Set("x-amz-date", amzDate)
	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQuery(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	scope := credentialScope(dateStamp, s.cfg.Region)
	signature := hmacSHA256Hex(deriveSigningKey(secretKey, dateStamp, s.cfg.Region), stringToSign(amzDate, scope, canonicalRequest))
	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		accessKey, scope, signedHeaders, signature,
	))
}

func credentialScope(dateStamp, region string) string {
	return strings.Join([]string{dateStamp, region, "s3", "aws4_request"}, "/")
}

func stringToSign(amzDate, scope, canonicalRequest string) string {
	hash := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, hex.EncodeToString(hash[:])}, "\n")
}

func canonicalizeHeaders(req *http.Request) (string, string) {
	headerMap := make(map[string][]string)
	for key, values := range req.Header {
		lower := strings.ToLower(key)
		if lower == "authorization" {
			continue
		}
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			cleaned = append(cleaned, strings.TrimSpace(v))
		}
		headerMap[lower] = cleaned
	}
	if _, ok := headerMap["host"]; !ok && req.Host != "" {
		headerMap["host"] = []string{req.Host}
	}
	keys := make([]string, 0, len(headerMap))
	for key := range headerMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteByte(':')
		builder.WriteString(strings.Join(headerMap[key], ","))
		builder.WriteByte('\n')
	}
	return builder.String(), strings.Join(keys, ";")
}

func canonicalURI(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// canonicalQuery sorts parameters and escapes them per RFC 3986, so spaces
// become %20 rather than +.
func canonicalQuery(u *url.URL) string {
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil || len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)
		for _, value := range vals {
			parts = append(parts, awsEscape(key)+"="+awsEscape(value))
		}
	}
	return strings.Join(parts, "&")
}

func awsEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func deriveSigningKey(secret, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key []byte, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hmacSHA256Hex(key []byte, data string) string {
	return hex.EncodeToString(hmacSHA256(key, []byte(data)))
}

var emptyPayloadHash = hashSHA256Hex(nil)

func hashSHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
