package keycache

import "testing"

func TestCache_GetMissReturnsFalse(t *testing.T) {
	c := New()
	if _, ok := c.Get("iss", "kid", "fp"); ok {
		t.Error("Get() on empty cache returned ok=true")
	}
}

func TestCache_PutThenGet(t *testing.T) {
	c := New()
	c.Put("https://issuer.example.com", "kid-1", "fp-1", "native-key")

	v, ok := c.Get("https://issuer.example.com", "kid-1", "fp-1")
	if !ok {
		t.Fatal("Get() after Put() returned ok=false")
	}
	if v != "native-key" {
		t.Errorf("Get() = %v, want native-key", v)
	}
}

func TestCache_FingerprintChangeIsACacheMiss(t *testing.T) {
	c := New()
	c.Put("https://issuer.example.com", "kid-1", "fp-1", "old-key")

	if _, ok := c.Get("https://issuer.example.com", "kid-1", "fp-2"); ok {
		t.Error("Get() with a different fingerprint should miss — rotated key material")
	}
}

func TestCache_IssuerIsolation(t *testing.T) {
	c := New()
	c.Put("https://issuer-a.example.com", "kid-1", "fp-1", "key-a")

	if _, ok := c.Get("https://issuer-b.example.com", "kid-1", "fp-1"); ok {
		t.Error("Get() crossed issuer boundaries for the same (kid, fingerprint)")
	}
}

func TestCache_ClearCacheRemovesOnlyMatchingIssuer(t *testing.T) {
	c := New()
	c.Put("https://issuer-a.example.com", "kid-1", "fp-1", "key-a")
	c.Put("https://issuer-b.example.com", "kid-1", "fp-1", "key-b")

	c.ClearCache("https://issuer-a.example.com")

	if _, ok := c.Get("https://issuer-a.example.com", "kid-1", "fp-1"); ok {
		t.Error("ClearCache() did not remove issuer-a's entry")
	}
	if _, ok := c.Get("https://issuer-b.example.com", "kid-1", "fp-1"); !ok {
		t.Error("ClearCache() removed an unrelated issuer's entry")
	}
}

func TestCache_ClearCacheOnEmptyCacheIsNoop(t *testing.T) {
	c := New()
	c.ClearCache("https://issuer.example.com")
}
