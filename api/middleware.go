package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

const corsOriginsEnv = "WTQ_EVAL_CORS_ORIGINS"

func (s *Server) registerMiddleware() {
	if s == nil || s.router == nil {
		return
	}
	s.router.Use(gin.Logger(), gin.Recovery(), corsMiddleware(os.Getenv(corsOriginsEnv)))
}

// originPolicy is the parsed form of the comma-separated CORS allowlist.
// The zero value allows nothing, which disables the middleware.
type originPolicy struct {
	allowAll bool
	origins  map[string]struct{}
}

func parseOriginPolicy(raw string) originPolicy {
	var p originPolicy
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimSpace(part)
		switch origin {
		case "":
		case "*":
			return originPolicy{allowAll: true}
		default:
			if p.origins == nil {
				p.origins = make(map[string]struct{})
			}
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) active() bool {
	return p.allowAll || len(p.origins) > 0
}

func (p originPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func corsMiddleware(rawOrigins string) gin.HandlerFunc {
	policy := parseOriginPolicy(rawOrigins)
	if !policy.active() {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if origin == "" {
			c.Next()
			return
		}

		if policy.allows(origin) {
			if policy.allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func apiKeyAuthMiddleware(expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		// Preflight requests carry no credentials.
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if strings.TrimSpace(c.GetHeader("X-API-Key")) != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
