package jwtverify

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chimerakang/jwtverify/internal/jsonsafe"
)

// ParseJWKS decodes a JWKS JSON document ({"keys": [...]}) into a JWKS,
// validating the shape invariants of every key (spec §3). Keys with an
// unrecognized kty are rejected; use/alg/kty checks that depend on the
// verification algorithm happen in ValidateForUse.
func ParseJWKS(data []byte) (JWKS, error) {
	obj, err := jsonsafe.DecodeObject(data)
	if err != nil {
		return JWKS{}, NewError(JwksValidationError, "JWKS is not a JSON object").WithCause(err)
	}
	rawKeys, ok := obj["keys"]
	if !ok {
		return JWKS{}, NewError(JwksValidationError, `JWKS is missing a "keys" array`)
	}
	list, ok := rawKeys.([]any)
	if !ok {
		return JWKS{}, NewError(JwksValidationError, `JWKS "keys" must be an array`)
	}

	out := JWKS{Keys: make([]JWK, 0, len(list))}
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return JWKS{}, NewError(JwksValidationError, "JWK entry is not a JSON object")
		}
		k, err := parseJWK(m)
		if err != nil {
			return JWKS{}, err
		}
		out.Keys = append(out.Keys, k)
	}
	return out, nil
}

func parseJWK(m map[string]any) (JWK, error) {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	k := JWK{
		Kty: str("kty"),
		Use: str("use"),
		Alg: str("alg"),
		Kid: str("kid"),
		N:   str("n"),
		E:   str("e"),
		Crv: str("crv"),
		X:   str("x"),
		Y:   str("y"),
	}
	if k.Kty != "RSA" && k.Kty != "EC" && k.Kty != "OKP" {
		return JWK{}, NewError(JwkValidationError, "kty must be one of RSA, EC, OKP").
			WithExpectedActual("RSA|EC|OKP", k.Kty)
	}
	if k.Kty == "RSA" && (k.N == "" || k.E == "") {
		return JWK{}, NewError(JwkValidationError, "RSA JWK must carry n and e").WithKid(k.Kid)
	}
	if k.Kty == "EC" && (k.Crv == "" || k.X == "" || k.Y == "") {
		return JWK{}, NewError(JwkValidationError, "EC JWK must carry crv, x and y").WithKid(k.Kid)
	}
	if k.Kty == "OKP" && (k.Crv == "" || k.X == "") {
		return JWK{}, NewError(JwkValidationError, "OKP JWK must carry crv and x").WithKid(k.Kid)
	}
	return k, nil
}

// ValidateForUse checks the key-use invariants enforced at verification
// time (spec §4.3, §4.8): use must be absent or "sig", and kty must
// match the algorithm family implied by alg.
func ValidateForUse(k JWK, alg string) error {
	if k.Use != "" && k.Use != "sig" {
		return NewError(JwkInvalidUse, "jwk.use must be \"sig\" when present").WithKid(k.Kid).
			WithExpectedActual("sig", k.Use)
	}

	family, ok := algFamily(alg)
	if !ok {
		return NewError(JwtInvalidSignatureAlgorithm, "unsupported alg").WithExpectedActual("", alg)
	}
	if family != k.Kty {
		return NewError(JwkInvalidKty, "jwk.kty does not match alg's key family").WithKid(k.Kid).
			WithExpectedActual(family, k.Kty)
	}
	return nil
}

func algFamily(alg string) (kty string, ok bool) {
	switch alg {
	case "RS256", "RS384", "RS512":
		return "RSA", true
	case "ES256", "ES384", "ES512":
		return "EC", true
	case "EdDSA":
		return "OKP", true
	default:
		return "", false
	}
}

// Fingerprint derives a stable identifier from a JWK's public-material
// fields (spec §3), used to key the key-object cache when multiple
// issuers happen to share a kid.
func Fingerprint(k JWK) string {
	h := sha256.New()
	h.Write([]byte(k.Kty))
	h.Write([]byte{0})
	switch k.Kty {
	case "RSA":
		h.Write([]byte(k.N))
		h.Write([]byte{0})
		h.Write([]byte(k.E))
	case "EC":
		h.Write([]byte(k.Crv))
		h.Write([]byte{0})
		h.Write([]byte(k.X))
		h.Write([]byte{0})
		h.Write([]byte(k.Y))
	case "OKP":
		h.Write([]byte(k.Crv))
		h.Write([]byte{0})
		h.Write([]byte(k.X))
	}
	return hex.EncodeToString(h.Sum(nil))
}
