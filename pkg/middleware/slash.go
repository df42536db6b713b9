package middleware

import (
	"net/http"
	"strings"
)

// TrimSlash redirects paths with a trailing slash to the canonical form without it.
// The root path "/" is preserved and the query string is kept.
func TrimSlash() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
				target := strings.TrimRight(r.URL.Path, "/")
				if target == "" {
					target = "/"
				}
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				code := http.StatusMovedPermanently
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					code = http.StatusPermanentRedirect
				}
				http.Redirect(w, r, target, code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
