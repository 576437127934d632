package jwtverify

import (
	"context"
)

// MultiVerifier dispatches verification to one of several single-issuer
// Verifiers by the token's exact "iss" claim (spec §4.11).
type MultiVerifier struct {
	byIssuer map[string]*Verifier
}

// NewMultiVerifier builds a MultiVerifier from at least one Verifier,
// each of which must have a distinct Issuer(). Duplicate issuers are
// rejected at construction.
func NewMultiVerifier(verifiers ...*Verifier) (*MultiVerifier, error) {
	if len(verifiers) == 0 {
		return nil, NewError(ParameterValidationError, "at least one verifier is required")
	}
	byIssuer := make(map[string]*Verifier, len(verifiers))
	for _, v := range verifiers {
		if v == nil {
			return nil, NewError(ParameterValidationError, "verifier must not be nil")
		}
		if _, dup := byIssuer[v.Issuer()]; dup {
			return nil, NewError(ParameterValidationError, "duplicate issuer in multi-issuer configuration").
				WithExpectedActual("", v.Issuer())
		}
		byIssuer[v.Issuer()] = v
	}
	return &MultiVerifier{byIssuer: byIssuer}, nil
}

// Verify decomposes token, dispatches to the child verifier whose
// Issuer exactly matches payload.iss, and delegates to its Verify.
func (m *MultiVerifier) Verify(ctx context.Context, token string, props *VerifyProps) (Payload, error) {
	jwt, err := Decompose(token)
	if err != nil {
		return nil, err
	}
	v, err := m.forIssuer(jwt.Payload.Iss())
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, token, props)
}

// VerifySync is the synchronous counterpart of Verify (spec §4.10's
// VerifySync contract applied per dispatched child).
func (m *MultiVerifier) VerifySync(token string, props *VerifyProps) (Payload, error) {
	jwt, err := Decompose(token)
	if err != nil {
		return nil, err
	}
	v, err := m.forIssuer(jwt.Payload.Iss())
	if err != nil {
		return nil, err
	}
	return v.VerifySync(token, props)
}

// Hydrate hydrates every child verifier's JWKS cache.
func (m *MultiVerifier) Hydrate(ctx context.Context) error {
	for _, v := range m.byIssuer {
		if err := v.Hydrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiVerifier) forIssuer(iss string) (*Verifier, error) {
	if iss == "" {
		return nil, NewError(JwtInvalidClaim, "MissingIssuer: token has no iss claim")
	}
	v, ok := m.byIssuer[iss]
	if !ok {
		return nil, NewError(IssuerNotConfigured, "no verifier configured for issuer").WithExpectedActual("", iss)
	}
	return v, nil
}
