package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/esched/internal/logger"
)

// RequireToken checks the shared admin token, sent either as
// "Authorization: Bearer <token>" or as ?token=<token> (clash clients can only
// do the latter). An empty token disables the check.
func RequireToken(token string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				got = strings.TrimSpace(bearer)
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				log.Warn("rejected request with invalid token",
					logger.String("ip", clientIP(r, trustProxy)),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
