package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/streakvault/streakvault/internal/crypto"
)

// Auth returns middleware that validates API requests against a stored API
// key hash (produced by crypto.HashAPIKey). Clients present the raw key as a
// Bearer token or in the X-API-Key header. If apiKeyHash is empty, the
// middleware passes all requests through (disabled).
func Auth(apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no API key is configured, authentication is disabled.
			if apiKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			ok, err := crypto.VerifyAPIKey(token, apiKeyHash)
			if err != nil || !ok {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// maxSignedBody bounds how much of a request body AdminHMAC will buffer for
// signature verification.
const maxSignedBody = 1 << 20

// AdminHMAC returns middleware that requires HMAC-signed requests. The
// signature covers timestamp+method+path+body; see crypto.HMACAuth. If auth
// is nil, admin routes are disabled entirely.
func AdminHMAC(auth *crypto.HMACAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeUnauthorized(w, "admin API disabled")
				return
			}

			key := r.Header.Get(crypto.HeaderKey)
			ts := r.Header.Get(crypto.HeaderTimestamp)
			sig := r.Header.Get(crypto.HeaderSignature)
			if key == "" || ts == "" || sig == "" {
				writeUnauthorized(w, "missing signature headers")
				return
			}
			if key != auth.Key {
				writeUnauthorized(w, "unknown key")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if err := auth.Verify(r.Method, r.URL.Path, string(body), ts, sig, time.Now()); err != nil {
				writeUnauthorized(w, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	// Check Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check X-API-Key header.
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
