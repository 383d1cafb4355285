package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// RequestLogger logs one line per request once the handler chain has run.
// Authorization headers and bodies are never logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"account_id": auth.CurrentIdentity(c).AccountID,
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// AllowedHosts rejects requests whose Host header matches none of hosts.
// "*" matches anything and a leading dot matches the domain and all of its
// subdomains. Ports are ignored.
func AllowedHosts(hosts []string) gin.HandlerFunc {
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}

	return func(c *gin.Context) {
		host := requestHost(c.Request.Host)
		if !hostAllowed(host, patterns) {
			logrus.WithField("host", c.Request.Host).Warn("Rejected request with disallowed Host header")
			utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid Host header.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	return strings.ToLower(host)
}

func hostAllowed(host string, patterns []string) bool {
	if host == "" {
		return false
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}

// QueryTimeout bounds the request context, and with it every store call the
// handler makes. A zero duration leaves the context untouched.
func QueryTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
