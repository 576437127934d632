// Package albcache implements the kid-templated JWKS cache variant for
// AWS ALB's per-kid PEM endpoint (spec §4.5): one SPKI PEM per key id at
// {base}/{kid}, LRU-retained with a small fixed capacity, with UUID-v4
// validation on kid rejecting malformed keys before any network call.
package albcache

import (
	"container/list"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/fetch"
	"github.com/chimerakang/jwtverify/metrics"
)

// cacheType is the label albcache reports itself as on shared metrics.
const cacheType = "alb"

// uuidV4 is the lexical UUID-v4 form required of ALB kids (spec §4.5,
// §6). Rejecting non-conforming kids before any fetch is load-bearing:
// it prevents an attacker minting unlimited distinct kids to force
// unlimited outbound fetches.
var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// DefaultCapacity is the default number of (baseURI, kid) entries retained.
const DefaultCapacity = 2

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity overrides the default LRU capacity of 2.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithFetcher overrides the default text/plain PEM fetcher.
func WithFetcher(f jwtverify.ByteFetcher) Option {
	return func(c *Cache) { c.fetcher = f }
}

// WithMetrics records cache hit/miss, fetch latency, and cache-size
// observations against m. Without this option metrics are skipped.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

type entryKey struct {
	baseURI string
	kid     string
}

type entryValue struct {
	jwk  jwtverify.JWK
	elem *list.Element // position in lru; Value is entryKey
}

// Cache is the ALB kid-templated jwtverify.JWKSCache. jwksURI is always
// treated as the ALB base URI; GetJWK/GetCachedJWK key on (baseURI,
// token's header kid) rather than parsing a JWKS document.
type Cache struct {
	capacity int
	fetcher  jwtverify.ByteFetcher
	metrics  *metrics.Metrics

	group singleflight.Group

	mu      sync.Mutex
	entries map[entryKey]*entryValue
	lru     *list.List // front = most recently used, back = least recently used
}

var _ jwtverify.JWKSCache = (*Cache)(nil)

// New creates an ALB cache. Without WithFetcher, PEM bytes are fetched
// over HTTP via fetch.NewTextFetcher (the ALB endpoint responds
// text/plain, not application/json — spec §9's open question).
func New(opts ...Option) *Cache {
	c := &Cache{
		capacity: DefaultCapacity,
		fetcher:  fetch.NewTextFetcher(),
		entries:  make(map[entryKey]*entryValue),
		lru:      list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddJWKS seeds every key in jwks under baseURI, as if each had been
// fetched individually.
func (c *Cache) AddJWKS(baseURI string, jwks jwtverify.JWKS) {
	c.mu.Lock()
	for _, k := range jwks.Keys {
		c.put(baseURI, k.Kid, k)
	}
	c.mu.Unlock()
	c.recordCacheSize()
}

// GetJWKS has no single document to fetch for a per-kid endpoint; it
// returns the keys currently cached for baseURI, fetching none.
func (c *Cache) GetJWKS(ctx context.Context, baseURI string) (jwtverify.JWKS, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out jwtverify.JWKS
	for key, v := range c.entries {
		if key.baseURI == baseURI {
			out.Keys = append(out.Keys, v.jwk)
		}
	}
	return out, nil
}

// GetJWK implements jwtverify.JWKSCache: validate the kid's UUID-v4
// shape, check the LRU, then fetch-and-convert the PEM at {baseURI}/{kid}
// on a miss, coalescing concurrent fetches for the same (baseURI, kid).
func (c *Cache) GetJWK(ctx context.Context, baseURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	kid := token.Header.Kid()
	if !uuidV4.MatchString(kid) {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwtWithoutValidKid, "kid is not a UUIDv4").WithKid(kid)
	}

	if k, err := c.GetCachedJWK(baseURI, token); err == nil {
		return k, nil
	}

	sfKey := baseURI + "\x00" + kid
	start := time.Now()
	v, err, _ := c.group.Do(sfKey, func() (any, error) {
		uri := baseURI + "/" + kid
		body, err := c.fetcher.Fetch(ctx, uri)
		if err != nil {
			return nil, jwtverify.NewError(jwtverify.FetchError, "failed to fetch ALB key").WithURI(uri).WithCause(err)
		}
		jwk, err := pemToJWK(body, kid)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.put(baseURI, kid, jwk)
		c.mu.Unlock()
		return jwk, nil
	})
	if err != nil {
		c.recordFetch("failure", time.Since(start).Seconds())
		return jwtverify.JWK{}, err
	}
	c.recordFetch("success", time.Since(start).Seconds())
	c.recordCacheSize()
	return v.(jwtverify.JWK), nil
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
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.SetCacheSize(cacheType, float64(size))
}

// GetCachedJWK implements jwtverify.JWKSCache, never touching the network.
func (c *Cache) GetCachedJWK(baseURI string, token jwtverify.JWT) (jwtverify.JWK, error) {
	kid := token.Header.Kid()
	if !uuidV4.MatchString(kid) {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwtWithoutValidKid, "kid is not a UUIDv4").WithKid(kid)
	}

	c.mu.Lock()
	key := entryKey{baseURI: baseURI, kid: kid}
	v, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(cacheType)
		}
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwksNotAvailableInCache, "no PEM cached for kid").
			WithURI(baseURI).WithKid(kid)
	}
	c.lru.MoveToFront(v.elem)
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheType)
	}
	return v.jwk, nil
}

// put inserts or refreshes the (baseURI, kid) entry, evicting the least
// recently used entry if the cache is at capacity. Must be called with
// c.mu held.
func (c *Cache) put(baseURI, kid string, jwk jwtverify.JWK) {
	key := entryKey{baseURI: baseURI, kid: kid}
	if existing, ok := c.entries[key]; ok {
		existing.jwk = jwk
		c.lru.MoveToFront(existing.elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	elem := c.lru.PushFront(key)
	c.entries[key] = &entryValue{jwk: jwk, elem: elem}
}

// evictOldest removes the least recently used entry. Must be called
// with c.mu held.
func (c *Cache) evictOldest() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	key := back.Value.(entryKey)
	c.lru.Remove(back)
	delete(c.entries, key)
}

// pemToJWK converts an SPKI PEM-encoded EC public key into the JWK shape
// required for ALB keys: kty=EC, use=sig, alg=ES256 (spec §4.5).
func pemToJWK(data []byte, kid string) (jwtverify.JWK, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwkValidationError, "ALB key is not valid PEM").WithKid(kid)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwkValidationError, "ALB key is not a valid SPKI public key").
			WithKid(kid).WithCause(err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return jwtverify.JWK{}, jwtverify.NewError(jwtverify.JwkValidationError, "ALB key is not an EC public key").WithKid(kid)
	}

	crv, size, err := curveName(ecKey)
	if err != nil {
		return jwtverify.JWK{}, err
	}

	return jwtverify.JWK{
		Kty: "EC",
		Use: "sig",
		Alg: "ES256",
		Kid: kid,
		Crv: crv,
		X:   encodeCoord(ecKey.X.Bytes(), size),
		Y:   encodeCoord(ecKey.Y.Bytes(), size),
	}, nil
}

func curveName(k *ecdsa.PublicKey) (name string, byteSize int, err error) {
	switch k.Curve.Params().BitSize {
	case 256:
		return "P-256", 32, nil
	default:
		return "", 0, jwtverify.NewError(jwtverify.JwkValidationError,
			fmt.Sprintf("unsupported curve bit size %d for ALB key", k.Curve.Params().BitSize))
	}
}

func encodeCoord(b []byte, size int) string {
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return base64.RawURLEncoding.EncodeToString(padded)
}
