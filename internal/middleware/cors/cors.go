// Package cors answers cross-origin requests from the configured front-ends.
package cors

import (
	"net/http"
	"strings"
)

const (
	allowMethods  = "GET, PUT, DELETE, OPTIONS"
	allowHeaders  = "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-ID, X-Requested-With"
	exposeHeaders = "X-Request-ID, Content-Disposition, Retry-After"
)

// Middleware allows credentialed requests from origins. Requests without an
// Origin header get a wildcard. Preflight requests are answered directly.
func Middleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			if allowed[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			} else if origin == "" {
				h.Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
