package jwtverify

import "context"

type ctxKey string

const ctxKeyPayload ctxKey = "jwtverify_payload"

// WithPayload stores a verified token's payload in the context, so
// downstream handlers (or middleware in this module's middleware/
// subpackages) can retrieve it without re-verifying.
func WithPayload(ctx context.Context, payload Payload) context.Context {
	return context.WithValue(ctx, ctxKeyPayload, payload)
}

// PayloadFromContext extracts the verified payload stored by WithPayload,
// or nil if none is present.
func PayloadFromContext(ctx context.Context) Payload {
	v, _ := ctx.Value(ctxKeyPayload).(Payload)
	return v
}
