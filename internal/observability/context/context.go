// Package context carries the request id and authenticated editor shared by
// logging, tracing and the handlers.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}

// Actor is the authenticated caller of a request.
type Actor struct {
	EditorID string
	Role     string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || strings.TrimSpace(actor.EditorID) == "" {
		return Actor{}, false
	}
	return actor, true
}
