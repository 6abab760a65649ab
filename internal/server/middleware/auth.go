package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth gates every gateway route behind the configured API key. Clients
// present the key either as "Authorization: Bearer <key>" or in the X-API-Key
// header. An empty key means the gateway runs open, which is the default for
// local development.
func Auth(apiKey string) func(http.Handler) http.Handler {
	secret := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedKey(r)
			// Constant-time compare; a missing key fails the same way as a
			// wrong one.
			if subtle.ConstantTimeCompare([]byte(presented), secret) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey extracts the client's credential, preferring the Bearer scheme
// over the X-API-Key header.
func presentedKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
