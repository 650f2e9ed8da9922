package services

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// withTraceID returns a context whose remote calls carry id.
func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// traceIDFrom returns the trace id of a scheduled run, or a fresh one when
// the call did not come from the scheduler.
func traceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
