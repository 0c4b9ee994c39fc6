package middleware

import (
	"net/http"
	"slices"
)

// RequireType allows users whose account type is one of tipos. Platform
// admins always pass.
func RequireType(tipos ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}
			if !user.IsAdmin() && !slices.Contains(tipos, user.Tipo) {
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
