package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"

	"github.com/davidbz/pixelcredit/internal/config"
)

// Browser clients send the admin bearer token and may pin their own request id, and they
// need to read back the correlation ids Trace sets.
var (
	requiredRequestHeaders = []string{"Authorization", "Content-Type", "X-Request-Id"}
	exposedHeaders         = []string{"X-Trace-Id", "X-Request-Id"}
)

// CORS applies the configured cross-origin policy via rs/cors. A nil config disables it.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.New(corsOptions(cfg)).Handler
}

func corsOptions(cfg *config.CORSConfig) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   withRequiredHeaders(cfg.AllowedHeaders),
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

// withRequiredHeaders appends the headers the API depends on when the configured list lacks them.
func withRequiredHeaders(configured []string) []string {
	headers := slices.Clone(configured)
	for _, h := range requiredRequestHeaders {
		if !slices.ContainsFunc(headers, func(c string) bool { return strings.EqualFold(c, h) || c == "*" }) {
			headers = append(headers, h)
		}
	}
	return headers
}
