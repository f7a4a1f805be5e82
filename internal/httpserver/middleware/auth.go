package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/davidbz/pixelcredit/internal/observability"
)

// BearerAuth rejects requests whose Authorization header is not "Bearer <secret>".
// An empty secret rejects everything, so admin routes stay closed until configured.
func BearerAuth(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				observability.FromContext(r.Context()).Warn("unauthorized admin request",
					observability.String("path", r.URL.Path))
				writeFailure(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
