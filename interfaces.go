package jwtverify

import "context"

// ByteFetcher retrieves raw bytes from a URI (spec §4.1). Implementations
// own their own retry/timeout policy; the default HTTP implementations
// live in the fetch subpackage.
type ByteFetcher interface {
	// Fetch retrieves the bytes at uri. Any error type may be returned:
	// the fetch subpackage returns plain errors (a *fetch.RetryableError
	// for HTTP 429 and other retryable failures), and the jwkscache and
	// albcache callers wrap every fetch failure in a *Error of Kind
	// FetchError.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// JWKSCache resolves a JWK for a decomposed token, fetching and caching
// JWKS documents as needed (spec §4.4).
type JWKSCache interface {
	// AddJWKS seeds the cache with an already-fetched JWKS; no upstream
	// request is made for it.
	AddJWKS(jwksURI string, jwks JWKS)

	// GetJWKS returns the cached JWKS for jwksURI, fetching one if absent.
	// Concurrent callers for the same URI observe a single fetch.
	GetJWKS(ctx context.Context, jwksURI string) (JWKS, error)

	// GetJWK resolves the JWK matching token's header kid, fetching and
	// caching as needed per the algorithm in spec §4.4.
	GetJWK(ctx context.Context, jwksURI string, token JWT) (JWK, error)

	// GetCachedJWK resolves the JWK matching token's header kid using only
	// what is already cached; fails with JwksNotAvailableInCache or
	// KidNotFoundInJwks rather than fetching.
	GetCachedJWK(jwksURI string, token JWT) (JWK, error)
}

// KeyCache memoizes native verification key material derived from a JWK,
// keyed by (issuer, kid, fingerprint) (spec §4.7).
type KeyCache interface {
	// Get returns a cached key object, or ok=false if none is cached.
	Get(issuer, kid, fingerprint string) (any, bool)

	// Put stores a key object for later Get calls.
	Put(issuer, kid, fingerprint string, key any)

	// ClearCache drops all entries for the given issuer.
	ClearCache(issuer string)
}

// PenaltyBox implements the per-(jwksUri,kid) cool-down described in spec
// §4.6, preventing key-rotation storms from flooding an upstream JWKS
// endpoint.
type PenaltyBox interface {
	// Wait fails with WaitPeriodNotYetEnded if the cool-down for
	// (jwksURI, kid) has not yet expired; otherwise it returns nil
	// immediately.
	Wait(ctx context.Context, jwksURI, kid string) error

	// RegisterFailedAttempt schedules a new cool-down window.
	RegisterFailedAttempt(jwksURI, kid string)

	// RegisterSuccessfulAttempt clears any cool-down window.
	RegisterSuccessfulAttempt(jwksURI, kid string)

	// Release clears all cool-down windows for jwksURI.
	Release(jwksURI string)
}
