// Package fake provides in-memory implementations of jwtverify's
// pluggable interfaces for embedder tests.
//
// Use fake.NewJWKSCache() to back a jwtverify.Verifier without any real
// HTTP traffic, and fake.NewFetcher() to control exactly what bytes a
// ByteFetcher returns (including simulated transport failures).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/chimerakang/jwtverify"
)

// Fetcher is an in-memory jwtverify.ByteFetcher. Responses are keyed by
// exact URI; an unconfigured URI returns a non-retryable error, the way
// a real 404 would.
type Fetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     map[string]int
}

// NewFetcher builds an empty Fetcher. Use SetResponse/SetError to seed it.
func NewFetcher() *Fetcher {
	return &Fetcher{
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetResponse configures Fetch(uri) to return body, nil.
func (f *Fetcher) SetResponse(uri string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uri] = body
	delete(f.errs, uri)
}

// SetError configures Fetch(uri) to return err.
func (f *Fetcher) SetError(uri string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[uri] = err
	delete(f.responses, uri)
}

// CallCount returns how many times Fetch was called for uri.
func (f *Fetcher) CallCount(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

// Fetch implements jwtverify.ByteFetcher.
func (f *Fetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[uri]++

	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	if body, ok := f.responses[uri]; ok {
		return body, nil
	}
	return nil, jwtverify.NewError(jwtverify.NonRetryableFetchError, "fake: no response configured").WithURI(uri)
}

// JWKSCache is an in-memory jwtverify.JWKSCache with no network access:
// every lookup is served from (or rejected against) pre-seeded state,
// making it suitable for VerifySync-only tests.
type JWKSCache struct {
	mu   sync.Mutex
	jwks map[string]jwtverify.JWKS
}

// NewJWKSCache builds an empty JWKSCache.
func NewJWKSCache() *JWKSCache {
	return &JWKSCache{jwks: make(map[string]jwtverify.JWKS)}
}

// AddJWKS implements jwtverify.JWKSCache.
func (c *JWKSCache) AddJWKS(jwksURI string, jwks jwtverify.JWKS) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jwks[jwksURI] = jwks
}

// GetJWKS implements jwtverify.JWKSCache. No fetch is ever performed;
// an un-seeded URI returns JwksNotAvailableInCache.
func (c *JWKSCache) GetJWKS(_ context.Context, jwksURI string) (jwtverify.JWKS, error) {
	return c.getJWKS(jwksURI)
}

func (c *JWKSCache) getJWKS(jwksURI string) (jwtverify.JWKS, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	jwks, ok := c.jwks[jwksURI]
	if !ok {
		return jwtverify.JWKS{}, jwtverify.NewError(jwtverify.JwksNotAvailableInCache, "fake: jwks not seeded").WithURI(jwksURI)
	}
	return jwks, nil
}

// GetJWK implements jwtverify.JWKSCache.
func (c *JWKSCache) GetJWK(_ context.Context, jwksURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	return c.lookup(jwksURI, token)
}

// GetCachedJWK implements jwtverify.JWKSCache.
func (c *JWKSCache) GetCachedJWK(jwksURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	return c.lookup(jwksURI, token)
}

func (c *JWKSCache) lookup(jwksURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	jwks, err := c.getJWKS(jwksURI)
	if err != nil {
		return jwtverify.JWK{}, err
	}
	kid := token.Header.Kid()
	if kid == "" {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwtWithoutValidKid, "fake: token has no kid")
	}
	jwk, ok := jwks.Find(kid)
	if !ok {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.KidNotFoundInJwks, "fake: kid not found").WithKid(kid)
	}
	return jwk, nil
}

// KeyCache is an in-memory jwtverify.KeyCache, useful for asserting a
// verifier actually reused a memoized key across calls rather than
// re-deriving it from JWK fields every time.
type KeyCache struct {
	mu      sync.Mutex
	entries map[string]any
	puts    int
}

// NewKeyCache builds an empty KeyCache.
func NewKeyCache() *KeyCache {
	return &KeyCache{entries: make(map[string]any)}
}

func keyCacheKey(issuer, kid, fingerprint string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", issuer, kid, fingerprint)
}

// Get implements jwtverify.KeyCache.
func (c *KeyCache) Get(issuer, kid, fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[keyCacheKey(issuer, kid, fingerprint)]
	return v, ok
}

// Put implements jwtverify.KeyCache.
func (c *KeyCache) Put(issuer, kid, fingerprint string, key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[keyCacheKey(issuer, kid, fingerprint)] = key
}

// ClearCache implements jwtverify.KeyCache.
func (c *KeyCache) ClearCache(issuer string) {
	prefix := issuer + "\x00"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// Puts returns how many times Put was called, for assertions that a
// verifier memoizes rather than re-deriving key material.
func (c *KeyCache) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// PenaltyBox is an in-memory jwtverify.PenaltyBox whose cool-down
// windows are driven explicitly by the test (RegisterFailedAttempt)
// rather than wall-clock time, so penalty-box tests never need a real
// sleep to observe the tripped state.
type PenaltyBox struct {
	mu      sync.Mutex
	tripped map[string]bool
}

// NewPenaltyBox builds an empty PenaltyBox: nothing is tripped until
// RegisterFailedAttempt is called.
func NewPenaltyBox() *PenaltyBox {
	return &PenaltyBox{tripped: make(map[string]bool)}
}

func penaltyKey(jwksURI, kid string) string {
	return jwksURI + "\x00" + kid
}

// Wait implements jwtverify.PenaltyBox.
func (p *PenaltyBox) Wait(_ context.Context, jwksURI, kid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tripped[penaltyKey(jwksURI, kid)] {
		return jwtverify.NewError(jwtverify.WaitPeriodNotYetEnded, "fake: penalty box is tripped").WithURI(jwksURI).WithKid(kid)
	}
	return nil
}

// RegisterFailedAttempt implements jwtverify.PenaltyBox.
func (p *PenaltyBox) RegisterFailedAttempt(jwksURI, kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tripped[penaltyKey(jwksURI, kid)] = true
}

// RegisterSuccessfulAttempt implements jwtverify.PenaltyBox.
func (p *PenaltyBox) RegisterSuccessfulAttempt(jwksURI, kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tripped, penaltyKey(jwksURI, kid))
}

// Release implements jwtverify.PenaltyBox.
func (p *PenaltyBox) Release(jwksURI string) {
	prefix := jwksURI + "\x00"
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.tripped {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(p.tripped, k)
		}
	}
}

var (
	_ jwtverify.ByteFetcher = (*Fetcher)(nil)
	_ jwtverify.JWKSCache   = (*JWKSCache)(nil)
	_ jwtverify.KeyCache    = (*KeyCache)(nil)
	_ jwtverify.PenaltyBox  = (*PenaltyBox)(nil)
)
