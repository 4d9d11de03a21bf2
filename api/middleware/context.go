package middleware

import "context"

// Actor is the authenticated caller attached to a request.
type Actor struct {
	UserID string
	Role   string
}

type actorKey struct{}

// ActorFromContext returns the caller stored by Auth, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithActor replaces the caller stored on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}

func RoleFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}

// WithUserID sets the caller id and keeps any role already present.
func WithUserID(ctx context.Context, userID string) context.Context {
	actor, _ := ActorFromContext(ctx)
	actor.UserID = userID
	return WithActor(ctx, actor)
}

// WithRole sets the caller role and keeps any id already present.
func WithRole(ctx context.Context, role string) context.Context {
	actor, _ := ActorFromContext(ctx)
	actor.Role = role
	return WithActor(ctx, actor)
}
