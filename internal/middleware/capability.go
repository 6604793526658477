package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"card-custody-service/internal/authz"
)

// RequireCapability rejects requests whose actor's role does not carry the
// given capability. Must run after ActorAuthMiddleware.
func RequireCapability(cap authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Actor identity required")
			return
		}

		if !authz.HasCapability(actor.Role, cap) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions for this operation")
			return
		}

		c.Next()
	}
}

// RequireAnyCapability passes if the actor's role carries at least one of
// the listed capabilities.
func RequireAnyCapability(caps ...authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Actor identity required")
			return
		}

		for _, cap := range caps {
			if authz.HasCapability(actor.Role, cap) {
				c.Next()
				return
			}
		}

		abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions for this operation")
	}
}
