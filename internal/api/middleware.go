package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware guards the control API with a static bearer token, rejecting
// everything else with the API's JSON error shape. The comparison is constant
// time. An empty token disables the check.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
