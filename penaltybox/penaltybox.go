// Package penaltybox implements the per-(jwksUri,kid) cool-down described
// in spec §4.6: after a failed kid lookup, further lookups for the same
// endpoint are rejected until the cool-down window elapses.
package penaltybox

import (
	"context"
	"sync"
	"time"

	"github.com/chimerakang/jwtverify"
	"github.com/chimerakang/jwtverify/metrics"
)

// Option configures a Box.
type Option func(*Box)

// WithWaitSeconds sets the cool-down duration after a failed attempt.
// Default 10s (spec §3 "Lifecycle").
func WithWaitSeconds(seconds float64) Option {
	return func(b *Box) { b.wait = time.Duration(seconds * float64(time.Second)) }
}

// WithMetrics records a penalty-box trip against m whenever Wait rejects
// a lookup during an active cool-down. Without this option trips are
// not recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Box) { b.metrics = m }
}

type entry struct {
	expiresAt time.Time
}

// Box is the default jwtverify.PenaltyBox. It is safe for concurrent use.
type Box struct {
	wait    time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	windows map[string]entry // key: jwksURI + "\x00" + kid
}

var _ jwtverify.PenaltyBox = (*Box)(nil)

// New creates a penalty box with the given options.
func New(opts ...Option) *Box {
	b := &Box{
		wait:    10 * time.Second,
		windows: make(map[string]entry),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func key(jwksURI, kid string) string {
	return jwksURI + "\x00" + kid
}

// Wait fails with WaitPeriodNotYetEnded if the cool-down for (jwksURI, kid)
// has not yet expired. It never actually blocks: the "waiting" is
// expressed as an immediate rejection, matching spec §4.4 step 3 ("Await
// the penalty box. If the cool-down has not expired → WaitPeriodNotYetEnded").
func (b *Box) Wait(ctx context.Context, jwksURI, kid string) error {
	b.mu.Lock()
	e, ok := b.windows[key(jwksURI, kid)]
	b.mu.Unlock()

	if !ok {
		return nil
	}
	if time.Now().Before(e.expiresAt) {
		if b.metrics != nil {
			b.metrics.RecordPenaltyBoxTrip(jwksURI)
		}
		return jwtverify.NewError(jwtverify.WaitPeriodNotYetEnded, "cool-down has not elapsed").
			WithURI(jwksURI).WithKid(kid)
	}
	return nil
}

// RegisterFailedAttempt schedules a new cool-down window, replacing any
// existing window for the same (jwksURI, kid).
func (b *Box) RegisterFailedAttempt(jwksURI, kid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[key(jwksURI, kid)] = entry{expiresAt: time.Now().Add(b.wait)}
}

// RegisterSuccessfulAttempt clears any cool-down window for (jwksURI, kid).
func (b *Box) RegisterSuccessfulAttempt(jwksURI, kid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, key(jwksURI, kid))
}

// Release clears all cool-down windows for jwksURI.
func (b *Box) Release(jwksURI string) {
	prefix := jwksURI + "\x00"
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.windows {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(b.windows, k)
		}
	}
}
