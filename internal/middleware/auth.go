package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stagebook/internal/domain"
	"stagebook/internal/pkg/response"
)

const actorKey = "actor"

// TokenValidator turns a bearer token into a verified actor.
type TokenValidator interface {
	ValidateToken(token string) (domain.Actor, error)
}

// JWTAuth requires a valid bearer token and stores the caller in the context
// under "user_id", "role" and the actor key read by ActorFrom.
func JWTAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		actor, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", actor.ID)
		c.Set("role", string(actor.Role))
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
