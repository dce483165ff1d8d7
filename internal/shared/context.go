package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting operator id in context. The id is set by
// the API gateway upstream; authentication itself happens outside this service.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting operator id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
