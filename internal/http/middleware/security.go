// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file adds the security headers the portal API always sends, plus a
// few that are opt-in. There is no CSP here since the API never serves HTML.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const exposeHeadersHeader = "Access-Control-Expose-Headers"

// SecurityOptions tunes the optional header groups.
//
// EnableHSTS must stay off unless traffic is HTTPS all the way from the
// client through the proxy to this process; the header is only emitted on
// requests that actually arrived over HTTPS either way. NoStore marks
// responses uncacheable, which the portal wants for anything carrying
// student records. EnablePolicy adds browser feature restrictions that are
// inert for non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders attaches hardening headers to every response. nosniff,
// frame denial, and referrer suppression are unconditional; the rest follow
// SecurityOptions. When a correlation id is already on the response, it is
// added to Access-Control-Expose-Headers so browser clients can read it.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hstsAge := int(opt.HSTSMaxAge.Seconds())
	if hstsAge <= 0 {
		hstsAge = int((180 * 24 * time.Hour).Seconds())
	}
	hstsValue := "max-age=" + strconv.Itoa(hstsAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}

		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers unless it is
// already listed.
func exposeHeader(h http.Header, name string) {
	cur := h.Get(exposeHeadersHeader)
	switch {
	case cur == "":
		h.Set(exposeHeadersHeader, name)
	case !strings.Contains(cur, name):
		h.Set(exposeHeadersHeader, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or as
// attested by a reverse proxy.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
