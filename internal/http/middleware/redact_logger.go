// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides RedactingLogger, an access logger for routes that see
// student PII (email, phone numbers, account ids). It never logs bodies, it
// masks credential-bearing headers outright, and it pattern-scrubs the query
// string and remaining headers before anything reaches the log stream.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Scrub order matters: ids first so the phone pattern cannot latch onto the
// digit runs inside a UUID, then emails, then the loose phone pattern.
var (
	idRE    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrubPII replaces recognizable identifiers with typed placeholders.
func scrubPII(s string) string {
	if s == "" {
		return s
	}
	s = idRE.ReplaceAllString(s, "<id>")
	s = emailRE.ReplaceAllString(s, "<email>")
	return phoneRE.ReplaceAllString(s, "<phone>")
}

// RedactOptions extends the built-in masked header set (Authorization,
// Cookie, Set-Cookie). Names are matched case-insensitively and their values
// replaced wholesale rather than pattern-scrubbed.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger logs one line per request with PII scrubbed from the query
// string and headers. Levels follow the response status: error for 5xx, warn
// for 4xx, info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		safeQuery := scrubPII(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for name, values := range c.Request.Header {
			if _, hide := masked[strings.ToLower(name)]; hide {
				safeHeaders[name] = "<masked>"
				continue
			}
			safeHeaders[name] = scrubPII(strings.Join(values, ", "))
		}

		c.Next()

		// Prefer the id the RequestID middleware reflected on the response;
		// without it, trust whatever the caller sent.
		rid := c.Writer.Header().Get(requestIDHeader)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch status := c.Writer.Status(); {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("query", safeQuery).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
