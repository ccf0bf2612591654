package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	return ""
}

func matchesAny(given string, hashes [][]byte) bool {
	if given == "" {
		return false
	}
	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(given)) == nil {
			return true
		}
	}
	return false
}

// HashKey returns the bcrypt hash to put in STATUS_API_KEY_HASHES for a
// plaintext key.
func HashKey(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RequireKey allows requests presenting a key that matches one of the
// bcrypt hashes, via "Authorization: Bearer <key>" or X-API-Key.
// If no hashes are configured, it allows all requests (handy for local dev).
func RequireKey(hashes []string) func(http.Handler) http.Handler {
	set := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			set = append(set, []byte(h))
		}
	}
	return func(next http.Handler) http.Handler {
		if len(set) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(readAuth(r), set) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		})
	}
}
