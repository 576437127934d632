package jwtverify

import "context"

// Header holds the decoded JWS header of a token. Recognized fields are
// exposed as accessors; unrecognized fields remain reachable via the map.
type Header map[string]any

// Alg returns the header's "alg" field, or "" if absent/not a string.
func (h Header) Alg() string {
	s, _ := h["alg"].(string)
	return s
}

// Kid returns the header's "kid" field, or "" if absent/not a string.
func (h Header) Kid() string {
	s, _ := h["kid"].(string)
	return s
}

// Typ returns the header's "typ" field, or "" if absent/not a string.
func (h Header) Typ() string {
	s, _ := h["typ"].(string)
	return s
}

// Payload holds the decoded JWS payload (claim set) of a token.
type Payload map[string]any

// Iss returns the "iss" claim, or "" if absent/not a string.
func (p Payload) Iss() string {
	s, _ := p["iss"].(string)
	return s
}

// Jti returns the "jti" claim, or "" if absent/not a string.
func (p Payload) Jti() string {
	s, _ := p["jti"].(string)
	return s
}

// Aud returns the "aud" claim normalized to a string slice. "aud" may be
// a single string or an ordered list of strings per spec §3.
func (p Payload) Aud() []string {
	switch v := p["aud"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Scope returns the space-separated "scope" claim split into tokens.
func (p Payload) Scope() []string {
	s, _ := p["scope"].(string)
	if s == "" {
		return nil
	}
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// numericClaim returns a float64 claim and whether it was present and
// numeric (a float64, as JSON numbers decode, or an int64 or int).
func (p Payload) numericClaim(name string) (float64, bool) {
	v, ok := p[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Exp returns the "exp" claim and whether it was present.
func (p Payload) Exp() (float64, bool) { return p.numericClaim("exp") }

// Nbf returns the "nbf" claim and whether it was present.
func (p Payload) Nbf() (float64, bool) { return p.numericClaim("nbf") }

// Iat returns the "iat" claim and whether it was present.
func (p Payload) Iat() (float64, bool) { return p.numericClaim("iat") }

// JWT is a decomposed, not-yet-verified JSON Web Token (spec §3).
type JWT struct {
	Header       Header
	Payload      Payload
	SigningInput []byte // header_b64url || "." || payload_b64url, ASCII
	Signature    []byte // raw bytes decoded from the base64url signature segment
}

// JWK is a JSON Web Key (spec §3). Public-material fields are kept as the
// raw base64url strings from the JWK document; NativeKey decodes them
// into native key material on demand.
type JWK struct {
	Kty string // "RSA", "EC", "OKP"
	Use string // "sig" if present
	Alg string
	Kid string

	// RSA
	N string
	E string

	// EC / OKP
	Crv string
	X   string
	Y   string // EC only
}

// JWKS is an ordered set of JWKs (spec §3).
type JWKS struct {
	Keys []JWK
}

// Find returns the JWK with the given kid, or false if none matches.
func (s JWKS) Find(kid string) (JWK, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// CustomCheck is a pluggable predicate evaluated last in claim assertion
// (spec §4.9 step 6). It is either Sync (usable from VerifySync) or Async
// (usable only from Verify).
type CustomCheck interface {
	isCustomCheck()
}

// SyncCustomCheck is a custom claim check that never suspends. Safe to use
// from both Verify and VerifySync.
type SyncCustomCheck func(header Header, payload Payload, jwk JWK) error

func (SyncCustomCheck) isCustomCheck() {}

// AsyncCustomCheck is a custom claim check that may perform I/O. Using it
// with VerifySync fails fast with ParameterValidationError (spec §4.10).
type AsyncCustomCheck func(ctx context.Context, header Header, payload Payload, jwk JWK) error

func (AsyncCustomCheck) isCustomCheck() {}

// Config configures a single-issuer verifier (spec §4.10, §6).
type Config struct {
	// Issuer is the expected "iss" claim value. Required unless
	// CustomJWTCheck is set; empty skips the built-in issuer check.
	Issuer string

	// JWKSUri is the JWKS endpoint. Defaults to
	// "{issuer}/.well-known/jwks.json" when empty.
	JWKSUri string

	// Audience is the accepted "aud" values. Nil means the audience check
	// is skipped (spec §4.9 step 2 treats an explicit null as "skip").
	Audience *[]string

	// Scope is the accepted scope values; empty/nil skips the scope check.
	Scope []string

	// GraceSeconds widens the exp/nbf windows. Default 0.
	GraceSeconds int

	// CustomJWTCheck is run last, after all other claim assertions pass.
	CustomJWTCheck CustomCheck
}

// VerifyProps overrides or supplies configuration at verify time (spec
// §4.10: "verify-time overrides construct-time").
type VerifyProps struct {
	Audience       *[]string
	Scope          []string
	GraceSeconds   *int
	CustomJWTCheck CustomCheck
}

// merge returns the effective Config after applying non-nil VerifyProps
// overrides on top of the construct-time Config.
func (c Config) merge(p *VerifyProps) Config {
	if p == nil {
		return c
	}
	out := c
	if p.Audience != nil {
		out.Audience = p.Audience
	}
	if p.Scope != nil {
		out.Scope = p.Scope
	}
	if p.GraceSeconds != nil {
		out.GraceSeconds = *p.GraceSeconds
	}
	if p.CustomJWTCheck != nil {
		out.CustomJWTCheck = p.CustomJWTCheck
	}
	return out
}
