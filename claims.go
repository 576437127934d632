package jwtverify

import (
	"context"
	"fmt"
)

func claimErr(msg string) *Error {
	return NewError(JwtInvalidClaim, msg)
}

// AssertClaims runs the synchronous claim assertions in the order
// mandated by spec §4.9: issuer, audience, expiry, not-before, scope.
// The first failure wins; assertions never accumulate. It does not run
// a custom check — callers invoke RunCustomSync/RunCustomAsync
// afterward.
func AssertClaims(payload Payload, cfg Config, now int64) error {
	if err := assertIssuer(payload, cfg.Issuer); err != nil {
		return err
	}
	if err := assertAudience(payload, cfg.Audience); err != nil {
		return err
	}
	if err := assertExpiry(payload, cfg.GraceSeconds, now); err != nil {
		return err
	}
	if err := assertNotBefore(payload, cfg.GraceSeconds, now); err != nil {
		return err
	}
	if err := assertScope(payload, cfg.Scope); err != nil {
		return err
	}
	return nil
}

// RunCustomSync runs a SyncCustomCheck, if configured. It fails fast
// with ParameterValidationError if check is an AsyncCustomCheck (spec
// §4.10: VerifySync only permits synchronous custom checks).
func RunCustomSync(header Header, payload Payload, jwk JWK, check CustomCheck) error {
	if check == nil {
		return nil
	}
	sync, ok := check.(SyncCustomCheck)
	if !ok {
		return NewError(ParameterValidationError, "customJwtCheck is async; use Verify, not VerifySync")
	}
	return sync(header, payload, jwk)
}

// RunCustomAsync runs either a SyncCustomCheck or AsyncCustomCheck, if
// configured.
func RunCustomAsync(ctx context.Context, header Header, payload Payload, jwk JWK, check CustomCheck) error {
	switch c := check.(type) {
	case nil:
		return nil
	case SyncCustomCheck:
		return c(header, payload, jwk)
	case AsyncCustomCheck:
		return c(ctx, header, payload, jwk)
	default:
		return NewError(ParameterValidationError, "customJwtCheck is not a recognized CustomCheck")
	}
}

func assertIssuer(payload Payload, issuer string) error {
	if issuer == "" {
		return nil
	}
	iss := payload.Iss()
	if iss == "" {
		return claimErr("MissingIssuer: token has no iss claim")
	}
	if iss != issuer {
		return claimErr(fmt.Sprintf("IssuerNotAllowed: iss %q does not match configured issuer %q", iss, issuer))
	}
	return nil
}

func assertAudience(payload Payload, configured *[]string) error {
	if configured == nil {
		return nil
	}
	tokenAud := payload.Aud()
	if len(tokenAud) == 0 {
		return claimErr("MissingAudience: token has no aud claim")
	}
	allowed := make(map[string]bool, len(*configured))
	for _, a := range *configured {
		allowed[a] = true
	}
	for _, a := range tokenAud {
		if allowed[a] {
			return nil
		}
	}
	return claimErr(fmt.Sprintf("AudienceNotAllowed: none of %v match configured audience %v", tokenAud, *configured))
}

func assertExpiry(payload Payload, graceSeconds int, now int64) error {
	exp, ok := payload.Exp()
	if !ok {
		return claimErr("MissingExpiry: token has no exp claim")
	}
	if exp <= float64(now)-float64(graceSeconds) {
		return NewError(JwtExpired, fmt.Sprintf("token expired at %v (now=%d, grace=%ds)", exp, now, graceSeconds))
	}
	return nil
}

func assertNotBefore(payload Payload, graceSeconds int, now int64) error {
	nbf, ok := payload.Nbf()
	if !ok {
		return nil
	}
	if nbf > float64(now)+float64(graceSeconds) {
		return NewError(JwtNotBefore, fmt.Sprintf("token not valid until %v (now=%d, grace=%ds)", nbf, now, graceSeconds))
	}
	return nil
}

func assertScope(payload Payload, configured []string) error {
	if len(configured) == 0 {
		return nil
	}
	tokenScope := payload.Scope()
	if len(tokenScope) == 0 {
		return claimErr("MissingScope: token has no scope claim")
	}
	allowed := make(map[string]bool, len(configured))
	for _, s := range configured {
		allowed[s] = true
	}
	for _, s := range tokenScope {
		if allowed[s] {
			return nil
		}
	}
	return claimErr(fmt.Sprintf("ScopeNotAllowed: none of %v match configured scope %v", tokenScope, configured))
}
