// Package actor carries the identity of the caller on a request context.
package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Role is the business role an actor acts under.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSales    Role = "sales"
	RoleFinance  Role = "finance"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

// Actor identifies who is performing an operation.
type Actor struct {
	Role Role
	ID   snowflake.ID
}

type contextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// WithSystem marks the context as driven by an automated process.
func WithSystem(ctx context.Context) context.Context {
	return WithActor(ctx, System())
}

// FromContext returns the actor from context, if set.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(contextKey{}).(Actor)
	if !ok || a.Role == "" {
		return Actor{}, false
	}
	return a, true
}

// System is the actor used by schedulers and usage pipelines.
func System() Actor {
	return Actor{Role: RoleSystem}
}

// ParseRole normalizes a raw role name.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSales:
		return RoleSales, true
	case RoleFinance:
		return RoleFinance, true
	case RoleCustomer:
		return RoleCustomer, true
	case RoleSystem:
		return RoleSystem, true
	default:
		return "", false
	}
}

// Subject renders the actor as "<role>:<id>" for logs and events.
func (a Actor) Subject() string {
	if a.ID == 0 {
		return string(a.Role)
	}
	return fmt.Sprintf("%s:%s", a.Role, a.ID.String())
}
