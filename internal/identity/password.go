package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordIterations = 210000
	passwordSaltBytes  = 16
	passwordKeyBytes   = 32
	minPasswordLength  = 6
)

var (
	errPasswordMismatch  = errors.New("password mismatch")
	errMalformedPassword = errors.New("malformed password hash")
)

// storedPassword is a PBKDF2-SHA256 digest encoded as
// "pbkdf2$sha256$<iterations>$<salt>$<key>" with unpadded base64 fields.
type storedPassword struct {
	iterations int
	salt       []byte
	key        []byte
}

func (p storedPassword) String() string {
	enc := base64.RawStdEncoding
	return "pbkdf2$sha256$" + strconv.Itoa(p.iterations) + "$" + enc.EncodeToString(p.salt) + "$" + enc.EncodeToString(p.key)
}

func parseStoredPassword(encoded string) (storedPassword, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 5 || fields[0] != "pbkdf2" || fields[1] != "sha256" {
		return storedPassword{}, errMalformedPassword
	}
	iterations, err := strconv.Atoi(fields[2])
	if err != nil || iterations <= 0 {
		return storedPassword{}, errMalformedPassword
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil {
		return storedPassword{}, fmt.Errorf("%w: salt: %v", errMalformedPassword, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(key) == 0 {
		return storedPassword{}, errMalformedPassword
	}
	return storedPassword{iterations: iterations, salt: salt, key: key}, nil
}

// matches derives a key from candidate with the stored parameters and
// compares in constant time.
func (p storedPassword) matches(candidate string) bool {
	derived := pbkdf2.Key([]byte(candidate), p.salt, p.iterations, len(p.key), sha256.New)
	return subtle.ConstantTimeCompare(derived, p.key) == 1
}

// outdated reports hashes created with weaker parameters than today's.
func (p storedPassword) outdated() bool {
	return p.iterations < passwordIterations || len(p.key) < passwordKeyBytes
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	stored := storedPassword{
		iterations: passwordIterations,
		salt:       salt,
		key:        pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeyBytes, sha256.New),
	}
	return stored.String(), nil
}

// verifyPassword checks candidate against encoded. The returned flag asks
// the caller to store a fresh hash.
func verifyPassword(encoded, candidate string) (rehash bool, err error) {
	stored, err := parseStoredPassword(encoded)
	if err != nil {
		return false, err
	}
	if !stored.matches(candidate) {
		return false, errPasswordMismatch
	}
	return stored.outdated(), nil
}
