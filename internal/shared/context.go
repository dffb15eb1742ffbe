package shared

import "context"

// Actor is the authenticated principal as asserted by the upstream auth
// gateway. The gateway terminates authentication; this service only sees
// the resolved identity and its granted permission strings.
type Actor struct {
	ID          int64
	Name        string
	Permissions []string
}

// Can reports whether the actor holds the permission string.
func (a *Actor) Can(perm string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
