package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders returns middleware that sets security-related HTTP headers
// on every response. The portal serves JSON to a single-page client, so the
// policy can be much stricter than a server-rendered site would allow.
//
// TLS is terminated by the reverse proxy in front of the portal; these
// headers provide defense-in-depth at the application layer.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Content-Security-Policy: the API never serves active content,
			// so deny everything. Protects error responses rendered by
			// browsers directly.
			h.Set("Content-Security-Policy",
				"default-src 'none'; frame-ancestors 'none'; base-uri 'self'",
			)

			// Strict-Transport-Security: enforce HTTPS for 1 year including
			// subdomains.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// X-Content-Type-Options: prevent MIME type sniffing.
			h.Set("X-Content-Type-Options", "nosniff")

			// X-Frame-Options: prevent clickjacking (redundant with CSP
			// frame-ancestors but some older browsers only support this header).
			h.Set("X-Frame-Options", "DENY")

			// Referrer-Policy: limit referrer information leaked to external sites.
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Cache-Control: responses carry per-user data (sessions,
			// conversations); shared caches must never store them.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
