package fake_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/fake"
)

func TestFetcher_SetResponseAndError(t *testing.T) {
	f := fake.NewFetcher()
	f.SetResponse("https://issuer.example.com/jwks.json", []byte(`{"keys":[]}`))

	body, err := f.Fetch(context.Background(), "https://issuer.example.com/jwks.json")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != `{"keys":[]}` {
		t.Errorf("body = %q", body)
	}
	if f.CallCount("https://issuer.example.com/jwks.json") != 1 {
		t.Errorf("CallCount = %d, want 1", f.CallCount("https://issuer.example.com/jwks.json"))
	}

	f.SetError("https://other.example.com/jwks.json", errors.New("boom"))
	if _, err := f.Fetch(context.Background(), "https://other.example.com/jwks.json"); err == nil {
		t.Error("Fetch() expected configured error")
	}
}

func TestFetcher_UnconfiguredURIReturnsNonRetryableError(t *testing.T) {
	f := fake.NewFetcher()
	_, err := f.Fetch(context.Background(), "https://unseeded.example.com/jwks.json")
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.NonRetryableFetchError {
		t.Errorf("error kind = %v, want NonRetryableFetchError", err)
	}
}

func rsaFixture(t *testing.T, kid string) (*rsa.PrivateKey, jwtverify.JWK) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	jwk := jwtverify.JWK{
		Kty: "RSA", Use: "sig", Alg: "RS256", Kid: kid,
		N: base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E: base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}
	return key, jwk
}

func TestJWKSCache_BacksARealVerifier(t *testing.T) {
	key, jwk := rsaFixture(t, "key-1")
	cache := fake.NewJWKSCache()
	cache.AddJWKS("https://issuer.example.com/.well-known/jwks.json", jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})

	v, err := jwtverify.NewVerifier(jwtverify.Config{Issuer: "https://issuer.example.com"}, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": "https://issuer.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "key-1"
	compact, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}

	if _, err := v.VerifySync(compact, nil); err != nil {
		t.Errorf("VerifySync() error: %v", err)
	}
}

func TestJWKSCache_GetJWK_UnknownKidReturnsKidNotFound(t *testing.T) {
	_, jwk := rsaFixture(t, "key-1")
	cache := fake.NewJWKSCache()
	cache.AddJWKS("https://issuer.example.com/.well-known/jwks.json", jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})

	_, err := cache.GetJWK(context.Background(), "https://issuer.example.com/.well-known/jwks.json", jwtverify.JWT{Header: jwtverify.Header{"kid": "missing"}})
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.KidNotFoundInJwks {
		t.Errorf("error kind = %v, want KidNotFoundInJwks", err)
	}
}

func TestJWKSCache_UnseededURIReturnsJwksNotAvailable(t *testing.T) {
	cache := fake.NewJWKSCache()
	_, err := cache.GetJWKS(context.Background(), "https://unseeded.example.com/jwks.json")
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.JwksNotAvailableInCache {
		t.Errorf("error kind = %v, want JwksNotAvailableInCache", err)
	}
}

func TestKeyCache_PutsCountsEachStore(t *testing.T) {
	kc := fake.NewKeyCache()
	kc.Put("issuer", "kid-1", "fp-1", "key-1")
	kc.Put("issuer", "kid-2", "fp-2", "key-2")
	if got := kc.Puts(); got != 2 {
		t.Errorf("Puts() = %d, want 2", got)
	}
	if v, ok := kc.Get("issuer", "kid-1", "fp-1"); !ok || v != "key-1" {
		t.Errorf("Get() = %v, %v", v, ok)
	}
}

func TestKeyCache_ClearCacheScopesToIssuer(t *testing.T) {
	kc := fake.NewKeyCache()
	kc.Put("issuer-a", "kid-1", "fp-1", "key-a")
	kc.Put("issuer-b", "kid-1", "fp-1", "key-b")
	kc.ClearCache("issuer-a")

	if _, ok := kc.Get("issuer-a", "kid-1", "fp-1"); ok {
		t.Error("ClearCache() left issuer-a's entry in place")
	}
	if _, ok := kc.Get("issuer-b", "kid-1", "fp-1"); !ok {
		t.Error("ClearCache() removed an unrelated issuer's entry")
	}
}

func TestPenaltyBox_TripsAndReleases(t *testing.T) {
	pb := fake.NewPenaltyBox()
	if err := pb.Wait(context.Background(), "https://issuer.example.com/jwks.json", "kid-1"); err != nil {
		t.Fatalf("Wait() on untripped box: %v", err)
	}

	pb.RegisterFailedAttempt("https://issuer.example.com/jwks.json", "kid-1")
	err := pb.Wait(context.Background(), "https://issuer.example.com/jwks.json", "kid-1")
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.WaitPeriodNotYetEnded {
		t.Errorf("error kind = %v, want WaitPeriodNotYetEnded", err)
	}

	pb.RegisterSuccessfulAttempt("https://issuer.example.com/jwks.json", "kid-1")
	if err := pb.Wait(context.Background(), "https://issuer.example.com/jwks.json", "kid-1"); err != nil {
		t.Errorf("Wait() after RegisterSuccessfulAttempt: %v", err)
	}
}

func TestPenaltyBox_ReleaseClearsAllKidsForURI(t *testing.T) {
	pb := fake.NewPenaltyBox()
	pb.RegisterFailedAttempt("https://issuer.example.com/jwks.json", "kid-1")
	pb.RegisterFailedAttempt("https://issuer.example.com/jwks.json", "kid-2")

	pb.Release("https://issuer.example.com/jwks.json")

	if err := pb.Wait(context.Background(), "https://issuer.example.com/jwks.json", "kid-1"); err != nil {
		t.Errorf("Wait(kid-1) after Release: %v", err)
	}
	if err := pb.Wait(context.Background(), "https://issuer.example.com/jwks.json", "kid-2"); err != nil {
		t.Errorf("Wait(kid-2) after Release: %v", err)
	}
}
