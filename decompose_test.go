package jwtverify

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func compactToken(header, payload, sig string) string {
	return b64(header) + "." + b64(payload) + "." + sig
}

func TestDecompose_ValidToken(t *testing.T) {
	token := compactToken(
		`{"alg":"RS256","kid":"key-1","typ":"JWT"}`,
		`{"iss":"https://issuer.example.com","exp":9999999999}`,
		b64("signature-bytes"),
	)

	jwt, err := Decompose(token)
	if err != nil {
		t.Fatalf("Decompose() error: %v", err)
	}
	if jwt.Header.Alg() != "RS256" {
		t.Errorf("Header.Alg() = %q, want RS256", jwt.Header.Alg())
	}
	if jwt.Header.Kid() != "key-1" {
		t.Errorf("Header.Kid() = %q, want key-1", jwt.Header.Kid())
	}
	if jwt.Payload.Iss() != "https://issuer.example.com" {
		t.Errorf("Payload.Iss() = %q", jwt.Payload.Iss())
	}
	wantSigningInput := strings.SplitN(token, ".", 3)
	if string(jwt.SigningInput) != wantSigningInput[0]+"."+wantSigningInput[1] {
		t.Errorf("SigningInput = %q", jwt.SigningInput)
	}
}

func TestDecompose_EmptyToken(t *testing.T) {
	_, err := Decompose("")
	assertParseError(t, err)
}

func TestDecompose_WrongSegmentCount(t *testing.T) {
	for _, tok := range []string{"a.b", "a.b.c.d", "onlyonesegment"} {
		_, err := Decompose(tok)
		assertParseError(t, err)
	}
}

func TestDecompose_InvalidBase64Header(t *testing.T) {
	_, err := Decompose("not-base64!!!." + b64(`{}`) + "." + b64("sig"))
	assertParseError(t, err)
}

func TestDecompose_HeaderNotJSONObject(t *testing.T) {
	token := b64(`["not","an","object"]`) + "." + b64(`{}`) + "." + b64("sig")
	_, err := Decompose(token)
	assertParseError(t, err)
}

func TestDecompose_AlgMustBeStringWhenPresent(t *testing.T) {
	token := compactToken(`{"alg":123}`, `{}`, b64("sig"))
	_, err := Decompose(token)
	assertParseError(t, err)
}

func TestDecompose_AlgAbsentIsOK(t *testing.T) {
	token := compactToken(`{"kid":"k1"}`, `{"iss":"x"}`, b64("sig"))
	jwt, err := Decompose(token)
	if err != nil {
		t.Fatalf("Decompose() error: %v", err)
	}
	if jwt.Header.Alg() != "" {
		t.Errorf("Alg() = %q, want empty", jwt.Header.Alg())
	}
}

func TestDecompose_AudAsArray(t *testing.T) {
	token := compactToken(`{"alg":"RS256"}`, `{"aud":["a","b"]}`, b64("sig"))
	jwt, err := Decompose(token)
	if err != nil {
		t.Fatalf("Decompose() error: %v", err)
	}
	aud := jwt.Payload.Aud()
	if len(aud) != 2 || aud[0] != "a" || aud[1] != "b" {
		t.Errorf("Aud() = %v", aud)
	}
}

func TestDecompose_AudArrayMustContainOnlyStrings(t *testing.T) {
	token := compactToken(`{"alg":"RS256"}`, `{"aud":["a",123]}`, b64("sig"))
	_, err := Decompose(token)
	assertParseError(t, err)
}

func TestDecompose_ExpMustBeFiniteNumber(t *testing.T) {
	token := compactToken(`{"alg":"RS256"}`, `{"exp":"not-a-number"}`, b64("sig"))
	_, err := Decompose(token)
	assertParseError(t, err)
}

func TestDecompose_InvalidSignatureBase64(t *testing.T) {
	token := b64(`{"alg":"RS256"}`) + "." + b64(`{}`) + ".not-valid-base64!!!"
	_, err := Decompose(token)
	assertParseError(t, err)
}

func assertParseError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != ParseError {
		t.Errorf("error kind = %v, want ParseError", err)
	}
}
