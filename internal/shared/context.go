package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user's id in context. The surrounding
// application owns authentication; the engine only needs an actor id for
// audit and approval records.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user's id from context.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
