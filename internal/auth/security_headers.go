package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Cover images come from catalog hosts and user-supplied URLs, so any
// http(s) image is allowed. The scan page needs camera frames as blobs.
var cspDirectives = []string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: blob: https: http:",
	"media-src 'self' blob:",
	"connect-src 'self'",
	"frame-ancestors 'none'",
}

var permissionsPolicy = strings.Join([]string{
	"camera=(self)",
	"microphone=()",
	"geolocation=()",
	"payment=()",
	"usb=()",
}, ", ")

// contentSecurityPolicy appends form-action for host. 'self' alone breaks
// form posts behind some TLS-terminating proxies.
func contentSecurityPolicy(host string) string {
	formAction := "form-action 'self'"
	if host != "" {
		formAction += " https://" + host
	}
	return strings.Join(append(cspDirectives[:len(cspDirectives):len(cspDirectives)], formAction), "; ")
}

// SecurityHeadersMiddleware sets the browser hardening headers on every response.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy(c.Request.Host))
		h.Set("Permissions-Policy", permissionsPolicy)
		c.Next()
	}
}

// StrictTransportSecurityMiddleware adds HSTS when the request came in over
// TLS, directly or through a proxy.
func StrictTransportSecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
