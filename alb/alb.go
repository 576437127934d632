// Package alb composes the ALB kid-templated JWKS cache with a verifier
// tailored to AWS Application Load Balancer authentication actions
// (spec §4.12): a "signer" claim equality check against the configured
// load balancer ARN, JWKS URI derivation from the ARN's region, and
// either a single-ARN verifier or a multi-ARN verifier that dispatches
// on the token's "signer" claim rather than "iss".
package alb

import (
	"context"
	"fmt"
	"regexp"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/albcache"
)

// arnPattern matches an ELB ARN of the form
// arn:aws:elasticloadbalancing:{region}:{account}:loadbalancer/...
var arnPattern = regexp.MustCompile(`^arn:aws:elasticloadbalancing:([a-z0-9-]+):\d+:loadbalancer/`)

// regionFromARN extracts the region segment from a load balancer ARN.
func regionFromARN(arn string) (string, error) {
	m := arnPattern.FindStringSubmatch(arn)
	if m == nil {
		return "", jwtverify.NewError(jwtverify.AlbUriError, "not a valid ELB load balancer ARN").
			WithExpectedActual("arn:aws:elasticloadbalancing:{region}:{account}:loadbalancer/...", arn)
	}
	return m[1], nil
}

// jwksURIForRegion derives the ALB public-key base URI for a region
// (spec §6, "ALB key endpoint").
func jwksURIForRegion(region string) string {
	return fmt.Sprintf("https://public-keys.auth.elb.%s.amazonaws.com", region)
}

// signerCheck returns a SyncCustomCheck asserting payload["signer"]
// equals arn exactly (spec §4.12).
func signerCheck(arn string) jwtverify.SyncCustomCheck {
	return func(_ jwtverify.Header, payload jwtverify.Payload, _ jwtverify.JWK) error {
		signer, _ := payload["signer"].(string)
		if signer != arn {
			return jwtverify.NewError(jwtverify.JwtInvalidClaim, "signer claim does not match configured load balancer ARN").
				WithExpectedActual(arn, signer)
		}
		return nil
	}
}

// Option configures the shared albcache.Cache backing a Verifier/MultiVerifier.
type Option func(*albcache.Cache)

// WithCacheOption threads an albcache.Option (e.g. albcache.WithCapacity)
// into the cache constructed for this verifier.
func WithCacheOption(o albcache.Option) Option {
	return func(c *albcache.Cache) { o(c) }
}

// NewVerifier builds a single-ARN ALB verifier. audience/scope/grace are
// layered onto the mandatory signer check via cfg; cfg.JWKSUri and
// cfg.CustomJWTCheck are overwritten. cfg.Issuer is left empty: ALB tokens carry no usable "iss"
// (the ARN travels in the "signer" claim instead), and Verifier's
// built-in issuer check only ever accepts one exact string, so pinning
// Issuer to arn would reject every real token before signerCheck, which
// asserts the signer claim, ever ran. signerCheck alone is responsible
// for ARN validation.
func NewVerifier(arn string, cfg jwtverify.Config, albOpts []albcache.Option, opts ...Option) (*jwtverify.Verifier, error) {
	region, err := regionFromARN(arn)
	if err != nil {
		return nil, err
	}
	cache := albcache.New(albOpts...)
	for _, o := range opts {
		o(cache)
	}

	cfg.Issuer = ""
	cfg.JWKSUri = jwksURIForRegion(region)
	cfg.CustomJWTCheck = signerCheck(arn)

	return jwtverify.NewVerifier(cfg, cache)
}

// MultiVerifier dispatches ALB verification across several load balancer
// ARNs by the token's "signer" claim (spec §4.12, "the list variant
// dispatches on the token's signer claim, not iss").
type MultiVerifier struct {
	bySigner map[string]*jwtverify.Verifier
}

// Entry pairs a load balancer ARN with the Config to apply for tokens
// it signs (audience/scope/graceSeconds). Its CustomJWTCheck is not used:
// NewVerifier replaces it with the signer check.
type Entry struct {
	ARN    string
	Config jwtverify.Config
}

// NewMultiVerifier builds a MultiVerifier from at least one (ARN, Config)
// pair, each backed by its own albcache.Cache.
func NewMultiVerifier(entries []Entry, albOpts []albcache.Option) (*MultiVerifier, error) {
	if len(entries) == 0 {
		return nil, jwtverify.NewError(jwtverify.ParameterValidationError, "at least one ALB entry is required")
	}
	bySigner := make(map[string]*jwtverify.Verifier, len(entries))
	for _, e := range entries {
		if _, dup := bySigner[e.ARN]; dup {
			return nil, jwtverify.NewError(jwtverify.ParameterValidationError, "duplicate load balancer ARN in multi-ALB configuration").
				WithExpectedActual("", e.ARN)
		}
		v, err := NewVerifier(e.ARN, e.Config, albOpts)
		if err != nil {
			return nil, err
		}
		bySigner[e.ARN] = v
	}
	return &MultiVerifier{bySigner: bySigner}, nil
}

// Verify decomposes token, dispatches by its "signer" claim, and
// delegates to the matching single-ARN verifier.
func (m *MultiVerifier) Verify(ctx context.Context, token string, props *jwtverify.VerifyProps) (jwtverify.Payload, error) {
	jwt, err := jwtverify.Decompose(token)
	if err != nil {
		return nil, err
	}
	v, err := m.forSigner(jwt.Payload)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, token, props)
}

// VerifySync is the synchronous counterpart of Verify.
func (m *MultiVerifier) VerifySync(token string, props *jwtverify.VerifyProps) (jwtverify.Payload, error) {
	jwt, err := jwtverify.Decompose(token)
	if err != nil {
		return nil, err
	}
	v, err := m.forSigner(jwt.Payload)
	if err != nil {
		return nil, err
	}
	return v.VerifySync(token, props)
}

// Hydrate calls Hydrate on every configured ARN's verifier. ALB has no
// document-level endpoint, so nothing is fetched, seeded or not; each
// verifier only clears its memoized key material. It exists for
// interface symmetry with Verifier.
func (m *MultiVerifier) Hydrate(ctx context.Context) error {
	for _, v := range m.bySigner {
		if err := v.Hydrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiVerifier) forSigner(payload jwtverify.Payload) (*jwtverify.Verifier, error) {
	signer, _ := payload["signer"].(string)
	if signer == "" {
		return nil, jwtverify.NewError(jwtverify.JwtInvalidClaim, "token has no signer claim")
	}
	v, ok := m.bySigner[signer]
	if !ok {
		return nil, jwtverify.NewError(jwtverify.IssuerNotConfigured, "no verifier configured for signer").
			WithExpectedActual("", signer)
	}
	return v, nil
}
