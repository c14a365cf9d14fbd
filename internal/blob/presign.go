package blob

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	unsignedPayload   = "UNSIGNED-PAYLOAD"
	maxPresignExpires = 7 * 24 * time.Hour
)

// SignedPutURL builds a SigV4 query-string presigned PUT. When contentType is
// set it is part of the signature and the uploader must send the same header.
func (s *S3) SignedPutURL(name, contentType string, expires time.Duration) (string, error) {
	accessKey, secretKey, ok := s.credentials()
	if !ok {
		return "", ErrUnsigned
	}
	if expires <= 0 || expires > maxPresignExpires {
		return "", fmt.Errorf("blob: presign expiry %s out of range", expires)
	}
	target := s.objectURL(name)
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	scope := credentialScope(dateStamp, s.cfg.Region)

	headers := map[string]string{"host": target.Host}
	if contentType != "" {
		headers["content-type"] = contentType
	}
	names := make([]string, 0, len(headers))
	for key := range headers {
		names = append(names, key)
	}
	sort.Strings(names)
	var canonicalHeaders strings.Builder
	for _, key := range names {
		canonicalHeaders.WriteString(key + ":" + strings.TrimSpace(headers[key]) + "\n")
	}
	signedHeaders := strings.Join(names, ";")

	query := url.Values{}
	query.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	query.Set("X-Amz-Credential", accessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.Itoa(int(expires/time.Second)))
	query.Set("X-Amz-SignedHeaders", signedHeaders)
	target.RawQuery = query.Encode()

	canonicalRequest := strings.Join([]string{
		"PUT",
		canonicalURI(target),
		canonicalQuery(target),
		canonicalHeaders.String(),
		signedHeaders,
		unsignedPayload,
	}, "\n")
	signature := hmacSHA256Hex(deriveSigningKey(secretKey, dateStamp, s.cfg.Region), stringToSign(amzDate, scope, canonicalRequest))

	target.RawQuery = canonicalQuery(target) + "&X-Amz-Signature=" + signature
	return target.String(), nil
}
