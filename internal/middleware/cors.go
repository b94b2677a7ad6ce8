package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, X-Locale, X-Request-ID"
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsPreflightSecs = "600"
)

// CORS answers browser preflights and tags responses for allowed origins.
// Entries are exact origins, "*" for any origin, or a subdomain wildcard
// such as "https://*.example.com". Disallowed origins get no CORS headers,
// which makes the browser block the response.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	match := originMatcher(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			h := w.Header()
			h.Add("Vary", "Origin")
			if origin != "" && match(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				if preflight {
					h.Set("Access-Control-Allow-Methods", corsAllowMethods)
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
					h.Set("Access-Control-Max-Age", corsPreflightSecs)
				}
			}
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originMatcher(allowed []string) func(string) bool {
	exact := make(map[string]bool, len(allowed))
	var suffixes [][2]string // scheme prefix, host suffix
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "*":
			return func(string) bool { return true }
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			suffixes = append(suffixes, [2]string{scheme + "://", host})
		case o != "":
			exact[o] = true
		}
	}
	return func(origin string) bool {
		if exact[origin] {
			return true
		}
		for _, s := range suffixes {
			rest, ok := strings.CutPrefix(origin, s[0])
			if ok && strings.HasSuffix(rest, s[1]) && len(rest) > len(s[1]) {
				return true
			}
		}
		return false
	}
}
