package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/livetemplate/listingkit/internal/config"
)

// Chain applies middleware so that the first one listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// corsPolicy is the precomputed form of the api.cors.origins list.
type corsPolicy struct {
	any          bool
	origins      map[string]bool
	allowHeaders string
}

func newCORSPolicy(origins []string, authHeaderName string) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
		}
		p.origins[o] = true
	}

	headers := []string{"Content-Type", "Authorization", "X-API-Key"}
	if authHeaderName != "" && !strings.EqualFold(authHeaderName, "Authorization") && !strings.EqualFold(authHeaderName, "X-API-Key") {
		headers = append(headers, authHeaderName)
	}
	p.allowHeaders = strings.Join(headers, ", ")
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.any:
		return "*"
	case p.origins[origin]:
		return origin
	}
	return ""
}

// CORSMiddleware answers preflight requests and adds CORS headers for the
// configured origins. authHeaderName is advertised in the allowed headers.
// With no origins the handler is returned unchanged.
func CORSMiddleware(origins []string, authHeaderName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(origins) == 0 {
			return next
		}
		policy := newCORSPolicy(origins, authHeaderName)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allow := policy.allowOrigin(r.Header.Get("Origin")); allow != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allow)
				if allow != "*" {
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", policy.allowHeaders)
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// contentSecurityPolicy allows listing images from any https host and
// inline styles from rendered style props. Scripts come only from /assets.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: blob: https:",
	"font-src 'self' data:",
	"connect-src 'self'",
	"frame-ancestors 'none'",
}, "; ")

// SecurityHeadersMiddleware sets the browser hardening headers on every
// response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}

const bearerPrefix = "Bearer "

// AuthMiddleware requires api.auth.api_key on every API request. The key is
// read from the configured header; when that header is Authorization it
// must use the Bearer scheme. Preflight requests pass through so CORS can
// answer them. Without a key the handler is returned unchanged.
func AuthMiddleware(authCfg *config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authCfg == nil || authCfg.GetAPIKey() == "" {
			return next
		}
		apiKey := authCfg.GetAPIKey()
		header := authCfg.GetHeaderName()
		bearer := strings.EqualFold(header, "Authorization")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(header)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if bearer {
				var ok bool
				token, ok = strings.CutPrefix(token, bearerPrefix)
				if !ok || token == "" {
					writeJSONError(w, http.StatusUnauthorized, "invalid authorization format, expected Bearer token")
					return
				}
			}
			if !secureCompare(token, apiKey) {
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// secureCompare compares in constant time for equal-length inputs.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
