// Package jwtverify verifies JWTs issued by identity providers that
// publish their public keys as a JSON Web Key Set (JWKS).
//
// It is built for server-side bearer-token authentication paths — API
// gateways, Lambda authorizers, HTTP/gRPC middleware — where a failed
// verification must reject the request. It does not issue or sign
// tokens, does not implement refresh-token flows, and does not model
// revocation beyond exp/nbf.
package jwtverify

import "fmt"

// Kind is a closed taxonomy of verification failure kinds.
type Kind int

const (
	// Parse errors.
	ParseError Kind = iota
	JwtWithoutValidKid
	JwksValidationError
	JwkValidationError

	// Network errors.
	FetchError
	NonRetryableFetchError

	// Cache errors.
	JwksNotAvailableInCache
	KidNotFoundInJwks
	WaitPeriodNotYetEnded

	// Crypto errors.
	InvalidSignature
	JwkInvalidUse
	JwkInvalidKty
	JwtInvalidSignatureAlgorithm

	// Claim errors.
	JwtExpired
	JwtNotBefore
	JwtInvalidClaim

	// Config errors.
	ParameterValidationError
	IssuerNotConfigured
	AlbUriError
)

var kindNames = map[Kind]string{
	ParseError:                   "ParseError",
	JwtWithoutValidKid:           "JwtWithoutValidKid",
	JwksValidationError:          "JwksValidationError",
	JwkValidationError:           "JwkValidationError",
	FetchError:                   "FetchError",
	NonRetryableFetchError:       "NonRetryableFetchError",
	JwksNotAvailableInCache:      "JwksNotAvailableInCache",
	KidNotFoundInJwks:            "KidNotFoundInJwks",
	WaitPeriodNotYetEnded:        "WaitPeriodNotYetEnded",
	InvalidSignature:             "InvalidSignature",
	JwkInvalidUse:                "JwkInvalidUse",
	JwkInvalidKty:                "JwkInvalidKty",
	JwtInvalidSignatureAlgorithm: "JwtInvalidSignatureAlgorithm",
	JwtExpired:                   "JwtExpired",
	JwtNotBefore:                 "JwtNotBefore",
	JwtInvalidClaim:              "JwtInvalidClaim",
	ParameterValidationError:     "ParameterValidationError",
	IssuerNotConfigured:          "IssuerNotConfigured",
	AlbUriError:                  "AlbUriError",
}

// String returns the taxonomy name for the kind, e.g. "JwtExpired".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UnknownError"
}

// Retryable reports whether a FetchError of this kind warrants the single
// immediate retry described in spec §4.1. Only FetchError itself is
// retryable; NonRetryableFetchError and everything else is not.
func (k Kind) Retryable() bool {
	return k == FetchError
}

// Error is the error type returned by every exported function in this
// module and its subpackages, except the fetch and internal/jsonsafe
// packages, which return plain errors. Callers should branch on Kind,
// not on the message text.
type Error struct {
	Kind Kind

	// Message is a human-readable description of the failure.
	Message string

	// URI is the JWKS or ALB endpoint involved, when applicable.
	URI string

	// Kid is the key id involved, when applicable.
	Kid string

	// Expected and Actual carry the mismatched values for comparison
	// failures (e.g. alg mismatch, issuer mismatch).
	Expected string
	Actual   string

	// Err wraps the underlying cause, when there is one (e.g. a transport
	// error or a JSON decode error).
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("jwtverify: %s: %s", e.Kind, e.Message)
	if e.URI != "" {
		msg += fmt.Sprintf(" (uri=%s)", e.URI)
	}
	if e.Kid != "" {
		msg += fmt.Sprintf(" (kid=%s)", e.Kid)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected=%q actual=%q)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is against another *Error by comparing Kind only,
// so callers can write errors.Is(err, &jwtverify.Error{Kind: jwtverify.JwtExpired}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs an *Error of the given kind with a message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithURI returns a copy of the error with URI set.
func (e *Error) WithURI(uri string) *Error {
	c := *e
	c.URI = uri
	return &c
}

// WithKid returns a copy of the error with Kid set.
func (e *Error) WithKid(kid string) *Error {
	c := *e
	c.Kid = kid
	return &c
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// WithExpectedActual returns a copy of the error with Expected/Actual set.
func (e *Error) WithExpectedActual(expected, actual string) *Error {
	c := *e
	c.Expected = expected
	c.Actual = actual
	return &c
}
