// Package jwkscache implements the default jwtverify.JWKSCache: a
// per-jwksUri JWKS cache that coalesces concurrent fetches for the same
// URI and cooperates with a jwtverify.PenaltyBox to avoid hammering an
// upstream endpoint during key rotation (spec §4.4).
package jwkscache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/fetch"
	"github.com/chimerakang/jwtverify/metrics"
)

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher overrides the default JSON ByteFetcher.
func WithFetcher(f jwtverify.ByteFetcher) Option {
	return func(c *Cache) { c.fetcher = f }
}

// WithPenaltyBox wires a PenaltyBox; without one, cool-downs are skipped.
func WithPenaltyBox(box jwtverify.PenaltyBox) Option {
	return func(c *Cache) { c.penalty = box }
}

// WithMetrics records cache hit/miss, fetch latency, and cache-size
// observations against m. Without this option metrics are skipped.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// cacheType is the label jwkscache reports itself as on shared metrics.
const cacheType = "jwks"

// Cache is the default jwtverify.JWKSCache.
type Cache struct {
	fetcher jwtverify.ByteFetcher
	penalty jwtverify.PenaltyBox
	metrics *metrics.Metrics

	group singleflight.Group

	mu   sync.RWMutex
	jwks map[string]jwtverify.JWKS
}

var _ jwtverify.JWKSCache = (*Cache)(nil)

// New creates a JWKS cache. Without WithFetcher, JSON JWKS documents are
// fetched over HTTP via fetch.NewJSONFetcher.
func New(opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetch.NewJSONFetcher(),
		jwks:    make(map[string]jwtverify.JWKS),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddJWKS implements jwtverify.JWKSCache.
func (c *Cache) AddJWKS(jwksURI string, jwks jwtverify.JWKS) {
	c.mu.Lock()
	c.jwks[jwksURI] = jwks
	c.mu.Unlock()
	c.recordCacheSize()
}

// GetJWKS implements jwtverify.JWKSCache, coalescing concurrent fetches
// for the same jwksURI into a single upstream request.
func (c *Cache) GetJWKS(ctx context.Context, jwksURI string) (jwtverify.JWKS, error) {
	c.mu.RLock()
	cached, ok := c.jwks[jwksURI]
	c.mu.RUnlock()
	if ok {
		c.recordCacheHit()
		return cached, nil
	}
	c.recordCacheMiss()
	return c.fetchAndStore(ctx, jwksURI)
}

func (c *Cache) fetchAndStore(ctx context.Context, jwksURI string) (jwtverify.JWKS, error) {
	start := time.Now()
	v, err, _ := c.group.Do(jwksURI, func() (any, error) {
		body, err := c.fetcher.Fetch(ctx, jwksURI)
		if err != nil {
			return nil, jwtverify.NewError(jwtverify.FetchError, "failed to fetch JWKS").WithURI(jwksURI).WithCause(err)
		}
		parsed, err := jwtverify.ParseJWKS(body)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.jwks[jwksURI] = parsed
		c.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		c.recordFetch("failure", time.Since(start).Seconds())
		return jwtverify.JWKS{}, err
	}
	c.recordFetch("success", time.Since(start).Seconds())
	c.recordCacheSize()
	return v.(jwtverify.JWKS), nil
}

func (c *Cache) recordCacheHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheType)
	}
}

func (c *Cache) recordCacheMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(cacheType)
	}
}

func (c *Cache) recordFetch(result string, durationSeconds float64) {
	if c.metrics != nil {
		c.metrics.RecordFetch(result, durationSeconds)
	}
}

func (c *Cache) recordCacheSize() {
	if c.metrics == nil {
		return
	}
	c.mu.RLock()
	size := len(c.jwks)
	c.mu.RUnlock()
	c.metrics.SetCacheSize(cacheType, float64(size))
}

// GetJWK implements jwtverify.JWKSCache per spec §4.4: check cache, then
// await the penalty box, then fetch-and-refresh, then penalize a
// continued miss.
func (c *Cache) GetJWK(ctx context.Context, jwksURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	kid := token.Header.Kid()

	if jwk, err := c.GetCachedJWK(jwksURI, token); err == nil {
		if c.penalty != nil {
			c.penalty.RegisterSuccessfulAttempt(jwksURI, kid)
		}
		return jwk, nil
	}

	if c.penalty != nil {
		if err := c.penalty.Wait(ctx, jwksURI, kid); err != nil {
			return jwtverify.JWK{}, err
		}
	}

	jwks, err := c.fetchAndStore(ctx, jwksURI)
	if err != nil {
		if c.penalty != nil {
			c.penalty.RegisterFailedAttempt(jwksURI, kid)
		}
		return jwtverify.JWK{}, err
	}

	found, ok := jwks.Find(kid)
	if !ok {
		if c.penalty != nil {
			c.penalty.RegisterFailedAttempt(jwksURI, kid)
		}
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.KidNotFoundInJwks, "kid not found in refreshed JWKS").
			WithURI(jwksURI).WithKid(kid)
	}

	if c.penalty != nil {
		c.penalty.RegisterSuccessfulAttempt(jwksURI, kid)
	}
	return found, nil
}

// GetCachedJWK implements jwtverify.JWKSCache, never touching the network.
func (c *Cache) GetCachedJWK(jwksURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	kid := token.Header.Kid()
	if kid == "" {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwtWithoutValidKid, "token header has no kid")
	}

	c.mu.RLock()
	jwks, ok := c.jwks[jwksURI]
	c.mu.RUnlock()
	if !ok {
		c.recordCacheMiss()
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwksNotAvailableInCache, "no JWKS cached for uri").WithURI(jwksURI)
	}

	found, ok := jwks.Find(kid)
	if !ok {
		c.recordCacheMiss()
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.KidNotFoundInJwks, "kid not found in cached JWKS").
			WithURI(jwksURI).WithKid(kid)
	}
	c.recordCacheHit()
	return found, nil
}
