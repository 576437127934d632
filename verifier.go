package jwtverify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chimerakang/jwtverify/audit"
	"github.com/chimerakang/jwtverify/metrics"
)

// Option configures a Verifier.
type Option func(*Verifier)

// WithKeyCache overrides the default key-object cache. Without one, a
// Verifier memoizes parsed key material in an unexported map guarded by
// a mutex; callers needing cross-verifier sharing should supply
// keycache.New() explicitly.
func WithKeyCache(c KeyCache) Option {
	return func(v *Verifier) { v.keyCache = c }
}

// WithClock overrides the wall clock used for exp/nbf assertions.
// Intended for tests.
func WithClock(fn func() time.Time) Option {
	return func(v *Verifier) { v.clock = fn }
}

// WithAuditLogger attaches an audit.Logger that records one event per
// Verify/VerifySync attempt: LogSuccess on a verified token, LogFailure
// (tagged with the failing Kind, when the error is a *jwtverify.Error)
// otherwise.
func WithAuditLogger(l *audit.Logger) Option {
	return func(v *Verifier) { v.auditLogger = l }
}

// WithMetrics attaches Prometheus metrics recording RecordVerification
// (result, error kind, duration including any JWKS fetch) for every
// Verify/VerifySync attempt.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// Verifier verifies tokens issued by a single issuer against a JWKS
// (spec §4.10). Its JWKSCache is supplied by the caller — the jwkscache
// package provides the production implementation (in-flight coalescing
// plus penalty-box coordination); the albcache package provides the
// ALB kid-templated variant.
type Verifier struct {
	cfg         Config
	jwksCache   JWKSCache
	keyCache    KeyCache
	clock       func() time.Time
	auditLogger *audit.Logger
	metrics     *metrics.Metrics
}

// NewVerifier builds a single-issuer verifier. cfg.Issuer is required
// unless cfg.CustomJWTCheck is set, in which case the custom check is
// trusted to validate "iss" itself (e.g. cognito.NewConfig, alb.NewVerifier,
// both of which accept issuer forms the built-in single-string check
// can't express) and the built-in check is skipped entirely. cfg.JWKSUri
// defaults to "{issuer}/.well-known/jwks.json" when empty, which requires
// cfg.Issuer to be set; callers leaving Issuer empty must supply JWKSUri
// explicitly. jwksCache is required: callers pick the caching/fetch policy
// (e.g. jwkscache.New(jwkscache.WithPenaltyBox(...)) or albcache.New()).
func NewVerifier(cfg Config, jwksCache JWKSCache, opts ...Option) (*Verifier, error) {
	if cfg.Issuer == "" && cfg.CustomJWTCheck == nil {
		return nil, NewError(ParameterValidationError, "issuer is required unless customJwtCheck validates it")
	}
	if jwksCache == nil {
		return nil, NewError(ParameterValidationError, "jwksCache is required")
	}
	if cfg.JWKSUri == "" {
		if cfg.Issuer == "" {
			return nil, NewError(ParameterValidationError, "jwksUri is required when issuer is empty")
		}
		cfg.JWKSUri = cfg.Issuer + "/.well-known/jwks.json"
	}
	if cfg.GraceSeconds < 0 {
		return nil, NewError(ParameterValidationError, "graceSeconds must be non-negative")
	}

	v := &Verifier{
		cfg:       cfg,
		jwksCache: jwksCache,
		keyCache:  newLocalKeyCache(),
		clock:     time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Issuer returns the verifier's configured issuer.
func (v *Verifier) Issuer() string { return v.cfg.Issuer }

// CacheJwks seeds the verifier's JWKS cache with an already-fetched
// JWKS; no upstream request is made for it (spec §5, "Seeded entries
// via addJwks/cacheJwks are treated as already-fetched").
func (v *Verifier) CacheJwks(jwks JWKS) {
	v.jwksCache.AddJWKS(v.cfg.JWKSUri, jwks)
}

// Hydrate fetches and caches the JWKS for this verifier's issuer. After
// Hydrate succeeds, VerifySync may be used (spec §4.10). The JWKS is
// fetched only if the cache does not already hold one for the issuer's
// JWKS URI; a cached JWKS is not refetched. Every successful call clears
// the key material memoized for the issuer.
func (v *Verifier) Hydrate(ctx context.Context) error {
	_, err := v.jwksCache.GetJWKS(ctx, v.cfg.JWKSUri)
	if err != nil {
		return err
	}
	v.keyCache.ClearCache(v.cfg.Issuer)
	return nil
}

// Verify decomposes, verifies and asserts claims for token, fetching
// the JWKS if it is not already cached. props overrides or supplies
// configuration not fixed at construction (verify-time overrides
// construct-time); pass nil to use the construct-time Config as-is.
func (v *Verifier) Verify(ctx context.Context, token string, props *VerifyProps) (Payload, error) {
	start := time.Now()
	jwt, cfg, err := v.prepare(token, props)
	if err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	jwk, err := v.jwksCache.GetJWK(ctx, cfg.JWKSUri, jwt)
	if err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	if err := v.verifySignatureCached(jwt, jwk); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	now := v.clock().Unix()
	if err := AssertClaims(jwt.Payload, cfg, now); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}
	if err := RunCustomAsync(ctx, jwt.Header, jwt.Payload, jwk, cfg.CustomJWTCheck); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}
	v.finish(jwt.Header, jwt.Payload, start, nil)
	return jwt.Payload, nil
}

// VerifySync is the synchronous counterpart of Verify: it requires the
// JWKS to already be cached (via Hydrate or CacheJwks) and permits only
// synchronous custom checks. It fails fast with ParameterValidationError
// if cfg.CustomJWTCheck is an AsyncCustomCheck.
func (v *Verifier) VerifySync(token string, props *VerifyProps) (Payload, error) {
	start := time.Now()
	jwt, cfg, err := v.prepare(token, props)
	if err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	if _, ok := cfg.CustomJWTCheck.(AsyncCustomCheck); ok {
		err := NewError(ParameterValidationError, "customJwtCheck is async; use Verify, not VerifySync")
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	jwk, err := v.jwksCache.GetCachedJWK(cfg.JWKSUri, jwt)
	if err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	if err := v.verifySignatureCached(jwt, jwk); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}

	now := v.clock().Unix()
	if err := AssertClaims(jwt.Payload, cfg, now); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}
	if err := RunCustomSync(jwt.Header, jwt.Payload, jwk, cfg.CustomJWTCheck); err != nil {
		v.finish(jwt.Header, jwt.Payload, start, err)
		return nil, err
	}
	v.finish(jwt.Header, jwt.Payload, start, nil)
	return jwt.Payload, nil
}

func (v *Verifier) prepare(token string, props *VerifyProps) (JWT, Config, error) {
	jwt, err := Decompose(token)
	if err != nil {
		return JWT{}, Config{}, err
	}
	return jwt, v.cfg.merge(props), nil
}

// verifySignatureCached checks the token's signature, memoizing the
// parsed native key by (issuer, kid, fingerprint) so the same JWK is
// never re-parsed into crypto key material (spec §4.7).
func (v *Verifier) verifySignatureCached(jwt JWT, jwk JWK) error {
	fp := Fingerprint(jwk)
	key, ok := v.keyCache.Get(v.cfg.Issuer, jwk.Kid, fp)
	if !ok {
		nativeKey, err := NativeKey(jwk)
		if err != nil {
			return err
		}
		v.keyCache.Put(v.cfg.Issuer, jwk.Kid, fp, nativeKey)
		key = nativeKey
	}
	return VerifySignatureWithKey(jwt, jwk, key)
}

// finish records the outcome of one Verify/VerifySync attempt to both
// the audit logger and the metrics recorder, when configured. err is nil
// on success.
func (v *Verifier) finish(header Header, payload Payload, start time.Time, err error) {
	kind := ""
	if verr, ok := err.(*Error); ok {
		kind = verr.Kind.String()
	}

	if v.auditLogger != nil {
		if err == nil {
			sub, _ := payload["sub"].(string)
			v.auditLogger.LogSuccess(v.cfg.Issuer, sub, header.Kid())
		} else {
			v.auditLogger.LogFailure(v.cfg.Issuer, header.Kid(), kind, err)
		}
	}

	if v.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		v.metrics.RecordVerification(v.cfg.Issuer, result, kind, time.Since(start).Seconds())
	}
}

// localKeyCache is the zero-dependency default KeyCache used when no
// WithKeyCache option is supplied.
type localKeyCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func newLocalKeyCache() *localKeyCache {
	return &localKeyCache{entries: make(map[string]any)}
}

func localKey(issuer, kid, fingerprint string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", issuer, kid, fingerprint)
}

func (c *localKeyCache) Get(issuer, kid, fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[localKey(issuer, kid, fingerprint)]
	return v, ok
}

func (c *localKeyCache) Put(issuer, kid, fingerprint string, key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[localKey(issuer, kid, fingerprint)] = key
}

func (c *localKeyCache) ClearCache(issuer string) {
	prefix := issuer + "\x00"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}
