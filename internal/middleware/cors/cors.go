// Package cors answers cross-origin requests from browser clients.
package cors

import (
	"net/http"
	"strings"
)

// Config controls the CORS response headers.
type Config struct {
	// AllowedOrigin is "*" or a single origin.
	AllowedOrigin  string
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultConfig allows any origin to use the expense routes.
func DefaultConfig() Config {
	return Config{
		AllowedOrigin:  "*",
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin", "X-Request-ID", "X-Requested-With"},
	}
}

// Middleware sets CORS headers and answers preflight requests with 204.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", cfg.AllowedOrigin)
			if cfg.AllowedOrigin != "*" {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
