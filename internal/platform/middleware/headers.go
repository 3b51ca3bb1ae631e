package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medai/medai/internal/logic"
)

// SecurityHeaders sets the response headers expected of a JSON API that
// serves patient data.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			// Responses may carry PHI.
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}

// IfMatch puts the checksum of an If-Match request header on the request
// context, where the logic session checks it against the row being updated.
func IfMatch() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h := c.Request().Header.Get("If-Match"); h != "" && h != "*" {
				req := c.Request()
				c.SetRequest(req.WithContext(logic.WithIfMatch(req.Context(), logic.ParseETag(h))))
			}
			return next(c)
		}
	}
}
