package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "geniuserp/internal/core/context"
)

const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorEmail = "X-Actor-Email"
)

// Actor middleware propagates the acting user from gateway headers into
// context, so audit entries and lifecycle events carry a real actor id.
// Authentication terminates upstream; without the header the actor stays
// the "system" default.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID == "" {
			c.Next()
			return
		}

		ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
			UserID: actorID,
			Email:  c.GetHeader(HeaderActorEmail),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set("actor_id", actorID)

		c.Next()
	}
}
