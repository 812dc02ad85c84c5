// Package middleware provides HTTP middleware for the challenge server.
package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// CORS returns middleware that handles CORS headers. Entries are either "*",
// an exact origin, or a host pattern such as "*.example.org" as accepted by
// the progress websocket.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				w.Header().Add("Vary", "Origin")
				if allowed, explicit := matchOrigin(allowedOrigins, origin); allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					// Credentials only for explicitly listed origins.
					if explicit {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin reports whether origin is allowed and whether it matched an
// entry other than the bare wildcard.
func matchOrigin(allowedOrigins []string, origin string) (allowed, explicit bool) {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, o := range allowedOrigins {
		switch {
		case o == "*":
			allowed = true
		case o == origin:
			return true, true
		case strings.Contains(o, "*"):
			if ok, _ := path.Match(o, host); ok {
				return true, true
			}
		}
	}
	return allowed, false
}
