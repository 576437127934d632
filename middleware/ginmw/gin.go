// Package ginmw provides Gin HTTP middleware wrapping a jwtverify
// verifier.
//
// Auth accepts any type satisfying the TokenVerifier interface — both
// *jwtverify.Verifier and *jwtverify.MultiVerifier qualify, as does
// *alb.MultiVerifier, which has the same Verify method — so the
// middleware has no import-time dependency on any one verifier
// construction.
package ginmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chimerakang/jwtverify"
)

// Context key for storing the verified payload in gin.Context.
const KeyPayload = "jwtverify_payload"

// TokenVerifier is satisfied by *jwtverify.Verifier, *jwtverify.MultiVerifier
// and *alb.MultiVerifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, props *jwtverify.VerifyProps) (jwtverify.Payload, error)
}

// AuthOption configures Auth middleware behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedPaths map[string]bool
	props         *jwtverify.VerifyProps
}

// WithExcludedPaths sets paths that skip authentication (e.g. health checks).
func WithExcludedPaths(paths ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// WithVerifyProps threads verify-time overrides (audience, scope,
// graceSeconds, a custom check that replaces the construct-time one)
// into every Verify call.
func WithVerifyProps(props *jwtverify.VerifyProps) AuthOption {
	return func(cfg *authConfig) { cfg.props = props }
}

// Auth returns Gin middleware that verifies the bearer token against v
// and stores the resulting payload in both the Gin context (retrievable
// via GetPayload/GetSubject/GetIssuer) and the request's context.Context
// (retrievable via jwtverify.PayloadFromContext, for handlers that don't
// depend on Gin). Responds 401 if the token is missing or fails
// verification.
func Auth(v TokenVerifier, opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.excludedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		tokenStr := extractBearerToken(c.Request)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		payload, err := v.Verify(c.Request.Context(), tokenStr, cfg.props)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(KeyPayload, payload)
		c.Request = c.Request.WithContext(jwtverify.WithPayload(c.Request.Context(), payload))

		c.Next()
	}
}

// GetPayload returns the verified token payload from the Gin context, or
// nil if Auth has not run (or rejected the request).
func GetPayload(c *gin.Context) jwtverify.Payload {
	v, _ := c.Get(KeyPayload)
	p, _ := v.(jwtverify.Payload)
	return p
}

// GetSubject returns the "sub" claim from the verified payload, or "" if
// absent or Auth has not run.
func GetSubject(c *gin.Context) string {
	p := GetPayload(c)
	if p == nil {
		return ""
	}
	s, _ := p["sub"].(string)
	return s
}

// GetIssuer returns the "iss" claim from the verified payload, or "" if
// absent or Auth has not run.
func GetIssuer(c *gin.Context) string {
	p := GetPayload(c)
	if p == nil {
		return ""
	}
	return p.Iss()
}

// GetScope returns the "scope" claim from the verified payload, split
// into tokens, or nil if absent or Auth has not run.
func GetScope(c *gin.Context) []string {
	p := GetPayload(c)
	if p == nil {
		return nil
	}
	return p.Scope()
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
