package middleware

import (
	"net/http"
	"strings"

	"github.com/AnshRaj112/connectpro-relay/pkg/utils"
)

// AdminAuth guards the admin API with a bearer token checked against the
// configured Argon2id hash. An empty hash disables the admin API entirely.
func AdminAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			valid, err := utils.VerifyToken(token, tokenHash)
			if err != nil || !valid {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
}
