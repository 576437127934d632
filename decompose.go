package jwtverify

import (
	"encoding/base64"
	"math"
	"strings"

	"github.com/chimerakang/jwtverify/internal/jsonsafe"
)

func parseErr(msg string) *Error {
	return NewError(ParseError, msg)
}

// Decompose splits and decodes a compact JWS string into a JWT. It never
// consults the network or a crypto primitive — it is pure parsing and
// shape validation (spec §4.2).
func Decompose(token string) (JWT, error) {
	if token == "" {
		return JWT{}, parseErr("token is empty")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return JWT{}, parseErr("token must have exactly three segments")
	}
	headerB64, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	headerBytes, err := decodeSegment(headerB64)
	if err != nil {
		return JWT{}, parseErr("header is not valid base64url").WithCause(err)
	}
	payloadBytes, err := decodeSegment(payloadB64)
	if err != nil {
		return JWT{}, parseErr("payload is not valid base64url").WithCause(err)
	}

	headerMap, err := jsonsafe.DecodeObject(headerBytes)
	if err != nil {
		return JWT{}, parseErr("header is not a JSON object").WithCause(err)
	}
	payloadMap, err := jsonsafe.DecodeObject(payloadBytes)
	if err != nil {
		return JWT{}, parseErr("payload is not a JSON object").WithCause(err)
	}

	header := Header(headerMap)
	payload := Payload(payloadMap)

	if err := validateHeader(header); err != nil {
		return JWT{}, err
	}
	if err := validatePayload(payload); err != nil {
		return JWT{}, err
	}

	sig, err := decodeSegment(sigB64)
	if err != nil {
		return JWT{}, parseErr("signature is not valid base64url").WithCause(err)
	}

	return JWT{
		Header:       header,
		Payload:      payload,
		SigningInput: []byte(headerB64 + "." + payloadB64),
		Signature:    sig,
	}, nil
}

// decodeSegment decodes a base64url segment, tolerating but not
// requiring "=" padding (spec §6).
func decodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func validateHeader(h Header) error {
	if v, ok := h["alg"]; ok {
		if _, isString := v.(string); !isString {
			return parseErr("header.alg must be a string")
		}
	}
	if v, ok := h["kid"]; ok {
		if _, isString := v.(string); !isString {
			return parseErr("header.kid must be a string when present")
		}
	}
	if v, ok := h["typ"]; ok {
		if _, isString := v.(string); !isString {
			return parseErr("header.typ must be a string when present")
		}
	}
	return nil
}

func validatePayload(p Payload) error {
	for _, name := range []string{"iss", "jti"} {
		if v, ok := p[name]; ok {
			if _, isString := v.(string); !isString {
				return parseErr(name + " must be a string when present")
			}
		}
	}
	if v, ok := p["aud"]; ok {
		switch aud := v.(type) {
		case string:
		case []any:
			for _, e := range aud {
				if _, isString := e.(string); !isString {
					return parseErr("aud array must contain only strings")
				}
			}
		default:
			return parseErr("aud must be a string or array of strings")
		}
	}
	for _, name := range []string{"exp", "nbf", "iat"} {
		if v, ok := p[name]; ok {
			n, isNumber := v.(float64)
			if !isNumber || math.IsNaN(n) || math.IsInf(n, 0) {
				return parseErr(name + " must be a finite number when present")
			}
		}
	}
	return nil
}
