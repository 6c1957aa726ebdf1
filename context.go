package dirtry

import (
	"context"
)

// metaKey is an unexported context key type.
type metaKey struct{}
type skipKey struct{}

// Meta carries operational context recorded alongside committed changes.
type Meta struct {
	Operator string
	TraceID  string
	Reason   string
}

// WithOperator attaches an operator identifier to the context.
func WithOperator(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.Operator = v
	return context.WithValue(ctx, metaKey{}, m)
}

// WithTraceID attaches a trace identifier.
func WithTraceID(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.TraceID = v
	return context.WithValue(ctx, metaKey{}, m)
}

// WithReason attaches a human-readable reason for the change.
func WithReason(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.Reason = v
	return context.WithValue(ctx, metaKey{}, m)
}

// WithSkip marks the context so stores do not journal changes committed with it.
func WithSkip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// Skipped reports whether WithSkip was applied to ctx.
func Skipped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v, ok := ctx.Value(skipKey{}).(bool); ok {
		return v
	}
	return false
}

// MetaFrom extracts metadata from context.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	if v := ctx.Value(metaKey{}); v != nil {
		if m, ok := v.(Meta); ok {
			return m
		}
	}
	return Meta{}
}
