package shared

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the coarse identity role passed down by the gateway.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor is the given user.
func (a Actor) Owns(userID uuid.UUID) bool {
	return a.UserID != uuid.Nil && a.UserID == userID
}

// ParseActor builds an actor from raw header values.
func ParseActor(userID, role string) (Actor, error) {
	id, err := uuid.Parse(userID)
	if err != nil || id == uuid.Nil {
		return Actor{}, fmt.Errorf("%w: bad user id", ErrUnauthenticated)
	}
	switch Role(role) {
	case RoleClient, RoleAdmin:
	case "":
		role = string(RoleClient)
	default:
		return Actor{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
	}
	return Actor{UserID: id, Role: Role(role)}, nil
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// RequireActor returns the actor in context or ErrUnauthenticated.
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == uuid.Nil {
		return Actor{}, ErrUnauthenticated
	}
	return actor, nil
}
