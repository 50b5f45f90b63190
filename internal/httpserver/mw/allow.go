package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/esched/internal/logger"
)

// AllowOnlyCIDRS restricts a route to the given IPs/CIDRs. An empty list
// does not filter.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	set, invalid := parsePrefixes(allowed)
	if len(invalid) > 0 {
		log.Warn("ignoring invalid admin CIDRs", logger.Strings("entries", invalid))
	}
	if len(set) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !set.contains(ip) {
				log.Debug("client IP rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
