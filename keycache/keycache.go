// Package keycache memoizes native verification key material derived
// from a JWK, keyed by (issuer, kid, fingerprint) so the same JWK is
// never parsed into a crypto key more than once (spec §4.7).
package keycache

import (
	"sync"

	"github.com/chimerakang/jwtverify"
)

// Cache is the default jwtverify.KeyCache. Safe for concurrent use.
type Cache struct {
	entries sync.Map // key: compositeKey -> any (a parsed crypto key)
}

var _ jwtverify.KeyCache = (*Cache)(nil)

// New creates an empty key-object cache.
func New() *Cache {
	return &Cache{}
}

func compositeKey(issuer, kid, fingerprint string) string {
	return issuer + "\x00" + kid + "\x00" + fingerprint
}

// Get implements jwtverify.KeyCache.
func (c *Cache) Get(issuer, kid, fingerprint string) (any, bool) {
	v, ok := c.entries.Load(compositeKey(issuer, kid, fingerprint))
	if !ok {
		return nil, false
	}
	return v, true
}

// Put implements jwtverify.KeyCache.
func (c *Cache) Put(issuer, kid, fingerprint string, key any) {
	c.entries.Store(compositeKey(issuer, kid, fingerprint), key)
}

// ClearCache implements jwtverify.KeyCache: drop every entry belonging
// to issuer. Called by the verifier's Hydrate after each successful JWKS
// lookup.
func (c *Cache) ClearCache(issuer string) {
	prefix := issuer + "\x00"
	c.entries.Range(func(k, _ any) bool {
		if ks, ok := k.(string); ok && len(ks) >= len(prefix) && ks[:len(prefix)] == prefix {
			c.entries.Delete(k)
		}
		return true
	})
}
