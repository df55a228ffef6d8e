package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/toolloop/toolloop/internal/models"
)

type apiKeyCtxKey struct{}

var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// Auth requires one of apiKeys in headerName or as a Bearer token. Public
// paths and CORS preflights pass through.
func Auth(apiKeys []string, headerName string) func(http.Handler) http.Handler {
	keys := keyList(apiKeys)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := presentedKey(r, headerName)
			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !matchesAny(keys, []byte(key)) {
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func keyList(apiKeys []string) [][]byte {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}

// presentedKey returns the key from headerName, falling back to a Bearer token.
func presentedKey(r *http.Request, headerName string) string {
	if headerName != "" {
		if key := r.Header.Get(headerName); key != "" {
			return key
		}
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

func matchesAny(keys [][]byte, candidate []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, candidate)
	}
	return found == 1
}

// APIKey returns the key the request authenticated with, if any.
func APIKey(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyCtxKey{}).(string)
	return key
}
