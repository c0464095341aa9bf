package session

import (
	"context"
	"math/rand/v2"
)

type (
	traceIDCtxKey struct{}
	inboundCtxKey struct{}
)

// WithNewTraceID ensures a trace ID is present in the context.
// An existing trace ID is kept, so nested calls share one ID.
func WithNewTraceID(ctx context.Context) context.Context {
	if _, ok := TraceIDFrom(ctx); ok {
		return ctx
	}

	return WithTraceID(ctx, generateTraceID())
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey{}, traceID)
}

// TraceIDFrom extracts a trace ID string from the context, if one exists.
func TraceIDFrom(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(traceIDCtxKey{}).(string)
	if ok && traceID != "" {
		return traceID, true
	}

	return "", false
}

// WithInbound returns a new context carrying the tag of the inbound being altered.
func WithInbound(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, inboundCtxKey{}, tag)
}

func InboundFrom(ctx context.Context) (string, bool) {
	tag, ok := ctx.Value(inboundCtxKey{}).(string)
	return tag, ok && tag != ""
}

// generateTraceID renders a random 64-bit value as 16 lowercase hex characters.
func generateTraceID() string {
	b := make([]byte, 16)

	q := rand.Uint64()
	for i := 15; i >= 0; i-- {
		r := uint8(q & 0xF)
		q >>= 4
		if r > 9 {
			r += 0x27 // 'a' - 10
		}
		b[i] = r + 0x30 // '0'
	}

	return string(b)
}
