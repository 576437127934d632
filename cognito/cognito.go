// Package cognito builds jwtverify.Config values for AWS Cognito user
// pools, the convenience constructor present in the original
// aws-jwt-verify implementation's CognitoJwtVerifier.create but
// compressed out of the distilled spec (spec §6 documents the issuer
// formats; this package wires a constructor for them).
package cognito

import (
	"fmt"
	"regexp"

	"github.com/chimerakang/jwtverify"
)

var userPoolIDPattern = regexp.MustCompile(`^[a-z0-9-]+_[A-Za-z0-9]+$`)

// standardIssuer and multiRegionIssuer are the two accepted "iss" forms
// for one user pool (spec §6).
func standardIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

func multiRegionIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://issuer.cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// acceptEitherIssuer returns a SyncCustomCheck that accepts payload.iss
// equal to either of a user pool's two valid issuer forms. It is wired
// as cfg.CustomJWTCheck rather than cfg.Issuer because Verifier only
// ever accepts one exact issuer string.
func acceptEitherIssuer(standard, multiRegion string) jwtverify.SyncCustomCheck {
	return func(_ jwtverify.Header, payload jwtverify.Payload, _ jwtverify.JWK) error {
		iss := payload.Iss()
		if iss == standard || iss == multiRegion {
			return nil
		}
		return jwtverify.NewError(jwtverify.JwtInvalidClaim, "iss does not match either accepted Cognito issuer form").
			WithExpectedActual(standard+" | "+multiRegion, iss)
	}
}

// NewConfig builds a Config for a Cognito user pool. userPoolID must be
// of the form "{region}_{id}" (e.g. "us-east-1_abc123DEF"); region and
// clientID are otherwise taken as given. The returned Config leaves
// Issuer empty so the verifier's built-in single-issuer check (which
// only ever accepts one exact string) is skipped; CustomJWTCheck takes
// over iss validation entirely, accepting either of the pool's two
// valid forms, matching the original's behavior of treating both as
// valid for one pool. JWKSUri is still derived from the standard form.
//
// clientID, when non-empty, is folded into the custom check: Cognito
// access tokens carry no "aud" claim, so verifying the "client_id" claim
// is the idiomatic substitute the original implementation uses.
func NewConfig(userPoolID, region, clientID string) (jwtverify.Config, error) {
	if !userPoolIDPattern.MatchString(userPoolID) {
		return jwtverify.Config{}, jwtverify.NewError(jwtverify.ParameterValidationError, "userPoolID must be of the form {region}_{id}").
			WithExpectedActual("{region}_{id}", userPoolID)
	}
	if region == "" {
		return jwtverify.Config{}, jwtverify.NewError(jwtverify.ParameterValidationError, "region is required")
	}

	standard := standardIssuer(region, userPoolID)
	multiRegion := multiRegionIssuer(region, userPoolID)

	check := acceptEitherIssuer(standard, multiRegion)
	var custom jwtverify.CustomCheck = check
	if clientID != "" {
		custom = jwtverify.SyncCustomCheck(func(h jwtverify.Header, p jwtverify.Payload, k jwtverify.JWK) error {
			if err := check(h, p, k); err != nil {
				return err
			}
			if got, _ := p["client_id"].(string); got != clientID {
				return jwtverify.NewError(jwtverify.JwtInvalidClaim, "client_id does not match configured Cognito app client").
					WithExpectedActual(clientID, got)
			}
			return nil
		})
	}

	return jwtverify.Config{
		JWKSUri:        standard + "/.well-known/jwks.json",
		CustomJWTCheck: custom,
	}, nil
}
