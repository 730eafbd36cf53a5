// Package crypto provides API key hashing, HMAC request authentication, and
// at-rest secret encryption for the HTTP API.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// hashLen is the derived hash length in bytes.
	hashLen = 32
	// apiKeyLen is the raw entropy of a generated API key in bytes.
	apiKeyLen = 24
)

// GenerateAPIKey returns a new random API key in the form "sk_<hex>". The
// raw key is shown to the caller once; only its hash is stored.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, apiKeyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("crypto: generating api key: %w", err)
	}
	return "sk_" + hex.EncodeToString(raw), nil
}

// HashAPIKey derives a salted PBKDF2-HMAC-SHA256 hash of the key, encoded as
// "pbkdf2$<iterations>$<salt-b64>$<hash-b64>".
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("crypto: api key must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: generating salt: %w", err)
	}

	hash := pbkdf2.Key([]byte(key), salt, pbkdf2Iterations, hashLen, sha256.New)

	return strings.Join([]string{
		"pbkdf2",
		strconv.Itoa(pbkdf2Iterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	}, "$"), nil
}

// VerifyAPIKey checks a presented key against a stored hash produced by
// HashAPIKey. The comparison is constant-time.
func VerifyAPIKey(key, stored string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2" {
		return false, errors.New("crypto: malformed api key hash")
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, fmt.Errorf("crypto: invalid iteration count %q", parts[1])
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("crypto: decoding hash: %w", err)
	}

	got := pbkdf2.Key([]byte(key), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
