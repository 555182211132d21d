package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/service"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved account.
const ContextActorKey = "currentActor"

// Actor resolves the token's account row and stores it in the context.
// Access decisions need the current status and class assignment, which the
// token does not carry, so the account is loaded fresh on every request.
func Actor(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		actor, err := authService.Profile(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the resolved account from the context, or nil.
func ActorFrom(c *gin.Context) *models.User {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*models.User)
	return actor
}
