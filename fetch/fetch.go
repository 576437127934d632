// Package fetch provides generic HTTP implementations of a byte-fetcher:
// one immediate retry on transport errors/429, content-type validation,
// and a response timeout. It has no dependency on the jwtverify domain
// types, so it can satisfy jwtverify.ByteFetcher without importing it;
// callers that need a *jwtverify.Error translate the returned error at
// the call site.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// RetryableError is returned by a failed attempt that is safe to retry
// (a transport error or HTTP 429). Fetch retries such a failure exactly
// once before giving up.
type RetryableError struct {
	URI string
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URI, e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a *RetryableError.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithResponseTimeout bounds how long a single fetch attempt (including
// its retry) may take.
func WithResponseTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.responseTimeout = d }
}

// contentKind selects the content-type validation a fetcher performs.
type contentKind int

const (
	contentJSON contentKind = iota
	contentText
)

// HTTPFetcher is a GET-and-validate byte fetcher: GET uri, validate the
// response, retry exactly once on a retryable failure.
type HTTPFetcher struct {
	client          *http.Client
	responseTimeout time.Duration
	kind            contentKind
}

// NewJSONFetcher returns a fetcher for endpoints that must respond with
// `application/json` (the JWKS document endpoint, spec §6).
func NewJSONFetcher(opts ...Option) *HTTPFetcher {
	return newFetcher(contentJSON, opts)
}

// NewTextFetcher returns a fetcher for endpoints that respond with
// `text/plain` (the ALB per-kid PEM endpoint, spec §9's open question).
func NewTextFetcher(opts ...Option) *HTTPFetcher {
	return newFetcher(contentText, opts)
}

func newFetcher(kind contentKind, opts []Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:          &http.Client{Timeout: 10 * time.Second},
		responseTimeout: 10 * time.Second,
		kind:            kind,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch retrieves the bytes at uri, retrying once on a retryable
// failure. The error returned on final failure is a plain error; it is
// never a *RetryableError (retries have already been exhausted).
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.responseTimeout)
	defer cancel()

	body, err := f.attempt(ctx, uri)
	if err == nil {
		return body, nil
	}
	if !IsRetryable(err) {
		return nil, err
	}

	// Exactly one immediate retry on a retryable failure (spec §4.1).
	body, err = f.attempt(ctx, uri)
	if err != nil {
		if r, ok := err.(*RetryableError); ok {
			return nil, r.Err
		}
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &RetryableError{URI: uri, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RetryableError{URI: uri, Err: errors.New("received HTTP 429")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected HTTP status %d", uri, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	switch f.kind {
	case contentJSON:
		if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
			return nil, fmt.Errorf("fetch %s: unexpected content-type %q, want application/json", uri, contentType)
		}
	case contentText:
		if !strings.HasPrefix(strings.ToLower(contentType), "text/plain") {
			return nil, fmt.Errorf("fetch %s: unexpected content-type %q, want text/plain", uri, contentType)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{URI: uri, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("fetch %s: response body is not valid UTF-8", uri)
	}

	return body, nil
}
