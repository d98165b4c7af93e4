package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Actor identifies the authenticated operator for a request.
type Actor struct {
	ID       int64
	Username string
}

// ContextWithActor stores the actor on the context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored on the context, if any.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*Actor)
	return actor, ok && actor != nil
}
