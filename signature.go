package jwtverify

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

// VerifySignature checks token's signature against k, enforcing the
// algorithm-dispatch invariants of spec §4.8 before invoking any crypto
// primitive. Actual cryptographic verification is delegated to
// golang-jwt/jwt/v5's SigningMethod registry, which already implements
// the required r‖s (IEEE P1363) ECDSA signature encoding rather than DER.
func VerifySignature(token JWT, k JWK) error {
	if alg := token.Header.Alg(); alg != "" {
		if err := ValidateForUse(k, alg); err != nil {
			return err
		}
	}
	key, err := NativeKey(k)
	if err != nil {
		return err
	}
	return VerifySignatureWithKey(token, k, key)
}

// VerifySignatureWithKey is VerifySignature for a caller that already
// holds k's native crypto key (typically from the key-object cache,
// spec §4.7), avoiding re-parsing the JWK's public-material fields on
// every verification.
func VerifySignatureWithKey(token JWT, k JWK, nativeKey any) error {
	alg := token.Header.Alg()
	if alg == "" {
		return NewError(JwtInvalidSignatureAlgorithm, "header.alg is missing")
	}
	if k.Alg != "" && k.Alg != alg {
		return NewError(JwtInvalidSignatureAlgorithm, "jwk.alg does not match header.alg").
			WithExpectedActual(k.Alg, alg)
	}
	if err := ValidateForUse(k, alg); err != nil {
		return err
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return NewError(JwtInvalidSignatureAlgorithm, "unsupported alg").WithExpectedActual("", alg)
	}

	if err := method.Verify(string(token.SigningInput), token.Signature, nativeKey); err != nil {
		return NewError(InvalidSignature, "signature verification failed").
			WithKid(k.Kid).WithCause(err)
	}
	return nil
}

// NativeKey decodes k into the crypto key type expected by the
// golang-jwt SigningMethod for its own alg/kty, for callers (the key
// cache) that want to memoize the parsed key independently of a
// specific token.
func NativeKey(k JWK) (any, error) {
	switch k.Kty {
	case "RSA":
		return rsaPublicKey(k)
	case "EC":
		return ecdsaPublicKey(k)
	case "OKP":
		return ed25519PublicKey(k)
	default:
		return nil, NewError(JwkValidationError, "unsupported kty").WithKid(k.Kid).
			WithExpectedActual("RSA|EC|OKP", k.Kty)
	}
}

func decodeCoord(s, field string, k JWK) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, NewError(JwkValidationError, fmt.Sprintf("jwk.%s is not valid base64url", field)).
			WithKid(k.Kid).WithCause(err)
	}
	return b, nil
}

func rsaPublicKey(k JWK) (*rsa.PublicKey, error) {
	nBytes, err := decodeCoord(k.N, "n", k)
	if err != nil {
		return nil, err
	}
	eBytes, err := decodeCoord(k.E, "e", k)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func ecdsaCurve(crv string, k JWK) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, NewError(JwkValidationError, "unsupported jwk.crv for EC key").
			WithKid(k.Kid).WithExpectedActual("P-256|P-384|P-521", crv)
	}
}

func ecdsaPublicKey(k JWK) (*ecdsa.PublicKey, error) {
	curve, err := ecdsaCurve(k.Crv, k)
	if err != nil {
		return nil, err
	}
	xBytes, err := decodeCoord(k.X, "x", k)
	if err != nil {
		return nil, err
	}
	yBytes, err := decodeCoord(k.Y, "y", k)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func ed25519PublicKey(k JWK) (ed25519.PublicKey, error) {
	if k.Crv == "Ed448" {
		// Ed448 has no maintained Go ecosystem implementation reachable
		// from this corpus; only Ed25519 is supported (spec §4.8's table
		// lists both as possible under EdDSA).
		return nil, NewError(JwtInvalidSignatureAlgorithm, "Ed448 is not supported").WithKid(k.Kid)
	}
	if k.Crv != "Ed25519" {
		return nil, NewError(JwkValidationError, "jwk.crv must be Ed25519 for EdDSA").
			WithKid(k.Kid).WithExpectedActual("Ed25519", k.Crv)
	}
	xBytes, err := decodeCoord(k.X, "x", k)
	if err != nil {
		return nil, err
	}
	if len(xBytes) != ed25519.PublicKeySize {
		return nil, NewError(JwkValidationError, "jwk.x has wrong length for Ed25519").WithKid(k.Kid)
	}
	return ed25519.PublicKey(xBytes), nil
}
