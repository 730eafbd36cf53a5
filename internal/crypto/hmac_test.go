package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACRoundTrip(t *testing.T) {
	auth := &HMACAuth{Key: "admin-1", Secret: "s3cret"}
	now := time.Unix(1_700_000_000, 0)

	headers := auth.HeadersAt("POST", "/api/admin/credits", `{"user":"alice"}`, now.Unix())
	assert.Equal(t, "admin-1", headers[HeaderKey])

	err := auth.Verify("POST", "/api/admin/credits", `{"user":"alice"}`,
		headers[HeaderTimestamp], headers[HeaderSignature], now)
	assert.NoError(t, err)
}

func TestHMACVerify_Rejections(t *testing.T) {
	auth := &HMACAuth{Key: "admin-1", Secret: "s3cret"}
	now := time.Unix(1_700_000_000, 0)
	headers := auth.HeadersAt("POST", "/p", "body", now.Unix())

	// Tampered body.
	err := auth.Verify("POST", "/p", "tampered", headers[HeaderTimestamp], headers[HeaderSignature], now)
	assert.Error(t, err)

	// Wrong method.
	err = auth.Verify("GET", "/p", "body", headers[HeaderTimestamp], headers[HeaderSignature], now)
	assert.Error(t, err)

	// Wrong secret.
	other := &HMACAuth{Key: "admin-1", Secret: "different"}
	err = other.Verify("POST", "/p", "body", headers[HeaderTimestamp], headers[HeaderSignature], now)
	assert.Error(t, err)

	// Stale timestamp.
	err = auth.Verify("POST", "/p", "body", headers[HeaderTimestamp], headers[HeaderSignature],
		now.Add(maxClockSkew+time.Second))
	assert.Error(t, err)

	// Garbage timestamp.
	err = auth.Verify("POST", "/p", "body", "yesterday", headers[HeaderSignature], now)
	assert.Error(t, err)
}

func TestHMACStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "admin-key-1", Secret: "super-secret-value"}
	s := auth.String()
	assert.NotContains(t, s, "super-secret-value")
	assert.True(t, strings.Contains(s, "****"))
}

func TestSecretBoxRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("the-admin-secret", "password123")
	require.NoError(t, err)

	plain, err := DecryptSecret(blob, "password123")
	require.NoError(t, err)
	assert.Equal(t, "the-admin-secret", plain)

	_, err = DecryptSecret(blob, "wrong-password")
	assert.Error(t, err)
}

func TestLoadSecret(t *testing.T) {
	// Raw secret wins.
	s, err := LoadSecret(SecretConfig{RawSecret: "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", s)

	// Nothing configured is an error.
	_, err = LoadSecret(SecretConfig{})
	assert.Error(t, err)

	// Encrypted file path.
	blob, err := EncryptSecret("from-file", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", s)
}
