package middleware

import (
	"crypto/subtle"
	"net/http"

	"contest_tracker/internal/common"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey gates a route on a shared secret sent in the X-Admin-Key
// header or the adminKey query parameter. An empty configured key locks the
// routes entirely.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminKeyHeader)
			if provided == "" {
				provided = r.URL.Query().Get("adminKey")
			}
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				common.RespondWithError(w, http.StatusForbidden, "Invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
