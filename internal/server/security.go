// security.go - Security response headers.
package server

import "net/http"

// securityHeadersMiddleware adds baseline security headers to all
// responses. Download responses reflect client-supplied filenames and
// content types, so nosniff matters here.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
