package cognito_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/cognito"
	"github.com/chimerakang/jwtverify/fake"
)

func TestNewConfig_RejectsMalformedUserPoolID(t *testing.T) {
	_, err := cognito.NewConfig("not-valid", "us-east-1", "")
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.ParameterValidationError {
		t.Errorf("error kind = %v, want ParameterValidationError", err)
	}
}

func TestNewConfig_RejectsEmptyRegion(t *testing.T) {
	_, err := cognito.NewConfig("us-east-1_abc123DEF", "", "")
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.ParameterValidationError {
		t.Errorf("error kind = %v, want ParameterValidationError", err)
	}
}

func TestNewConfig_DerivesStandardIssuerAndJWKSUri(t *testing.T) {
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	want := "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123DEF"
	if cfg.Issuer != "" {
		t.Errorf("Issuer = %q, want empty (validation delegated to CustomJWTCheck)", cfg.Issuer)
	}
	if cfg.JWKSUri != want+"/.well-known/jwks.json" {
		t.Errorf("JWKSUri = %q", cfg.JWKSUri)
	}
	if cfg.CustomJWTCheck == nil {
		t.Error("CustomJWTCheck = nil, want issuer-validating check")
	}
}

func fixture(t *testing.T, kid string) (*rsa.PrivateKey, jwtverify.JWK) {
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

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	compact, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	return compact
}

func TestNewConfig_AcceptsStandardIssuerForm(t *testing.T) {
	key, jwk := fixture(t, "key-1")
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	cache := fake.NewJWKSCache()
	cache.AddJWKS(cfg.JWKSUri, jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})
	v, err := jwtverify.NewVerifier(cfg, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	token := sign(t, key, "key-1", jwt.MapClaims{
		"iss": "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123DEF",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.VerifySync(token, nil); err != nil {
		t.Errorf("VerifySync() error: %v", err)
	}
}

func TestNewConfig_AcceptsMultiRegionIssuerForm(t *testing.T) {
	key, jwk := fixture(t, "key-1")
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	cache := fake.NewJWKSCache()
	cache.AddJWKS(cfg.JWKSUri, jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})
	v, err := jwtverify.NewVerifier(cfg, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	token := sign(t, key, "key-1", jwt.MapClaims{
		"iss": "https://issuer.cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123DEF",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.VerifySync(token, nil); err != nil {
		t.Errorf("VerifySync() error: %v", err)
	}
}

func TestNewConfig_RejectsUnrelatedIssuer(t *testing.T) {
	key, jwk := fixture(t, "key-1")
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	cache := fake.NewJWKSCache()
	cache.AddJWKS(cfg.JWKSUri, jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})
	v, err := jwtverify.NewVerifier(cfg, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	token := sign(t, key, "key-1", jwt.MapClaims{
		"iss": "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_otherPool",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = v.VerifySync(token, nil)
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.JwtInvalidClaim {
		t.Errorf("error kind = %v, want JwtInvalidClaim", err)
	}
}

func TestNewConfig_RejectsMismatchedClientID(t *testing.T) {
	key, jwk := fixture(t, "key-1")
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "expected-client-id")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	cache := fake.NewJWKSCache()
	cache.AddJWKS(cfg.JWKSUri, jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})
	v, err := jwtverify.NewVerifier(cfg, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	token := sign(t, key, "key-1", jwt.MapClaims{
		"iss":       "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123DEF",
		"client_id": "wrong-client-id",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	_, err = v.VerifySync(token, nil)
	var verr *jwtverify.Error
	if !errors.As(err, &verr) || verr.Kind != jwtverify.JwtInvalidClaim {
		t.Errorf("error kind = %v, want JwtInvalidClaim", err)
	}
}

func TestNewConfig_AcceptsMatchingClientID(t *testing.T) {
	key, jwk := fixture(t, "key-1")
	cfg, err := cognito.NewConfig("us-east-1_abc123DEF", "us-east-1", "expected-client-id")
	if err != nil {
		t.Fatalf("NewConfig() error: %v", err)
	}
	cache := fake.NewJWKSCache()
	cache.AddJWKS(cfg.JWKSUri, jwtverify.JWKS{Keys: []jwtverify.JWK{jwk}})
	v, err := jwtverify.NewVerifier(cfg, cache)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	token := sign(t, key, "key-1", jwt.MapClaims{
		"iss":       "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123DEF",
		"client_id": "expected-client-id",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.VerifySync(token, nil); err != nil {
		t.Errorf("VerifySync() error: %v", err)
	}
}
