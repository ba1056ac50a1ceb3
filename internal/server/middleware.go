package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/authorization"
)

const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"
)

// ActorFromHeaders puts the gateway-authenticated caller on the request context.
// The system role is reserved for in-process jobs and is never accepted here.
func ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawRole := strings.TrimSpace(c.GetHeader(HeaderActorRole))
		if rawRole == "" {
			AbortWithError(c, authorization.ErrActorRequired)
			return
		}
		role, ok := actor.ParseRole(rawRole)
		if !ok || role == actor.RoleSystem {
			AbortWithError(c, authorization.ErrForbidden)
			return
		}

		var id snowflake.ID
		if rawID := strings.TrimSpace(c.GetHeader(HeaderActorID)); rawID != "" {
			parsed, err := snowflake.ParseString(rawID)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError(HeaderActorID, "invalid_actor_id", "invalid actor id"))
				return
			}
			id = parsed
		}
		if role == actor.RoleCustomer && id == 0 {
			AbortWithError(c, newValidationError(HeaderActorID, "required", "customer actor id is required"))
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.Actor{Role: role, ID: id})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestActor(c *gin.Context) actor.Actor {
	a, _ := actor.FromContext(c.Request.Context())
	return a
}

// StaffOnly rejects customer callers. Discount negotiation is internal.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestActor(c).Role == actor.RoleCustomer {
			AbortWithError(c, authorization.ErrForbidden)
			return
		}
		c.Next()
	}
}
