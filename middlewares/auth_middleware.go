package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AuthMiddleware verifies the bearer token with verifier, which is the local
// user service or a client for the remote one. The token is kept on the
// request context so outbound calls can forward it.
func AuthMiddleware(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, utils.NewUnauthorizedError("authorization header missing"))
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, utils.NewUnauthorizedError("authorization header must be a bearer token"))
			return
		}
		authenticate(c, verifier, strings.TrimPrefix(authHeader, "Bearer "))
	}
}

func authenticate(c *gin.Context, verifier services.TokenVerifier, token string) {
	ctx := utils.WithToken(c.Request.Context(), token)
	user, err := verifier.Verify(ctx, token)
	if err != nil {
		if !utils.IsKind(err, utils.KindUnauthorized) {
			err = utils.NewUnauthorizedError("could not verify token")
		}
		utils.RespondError(c, err)
		return
	}
	if user.ID == 0 {
		utils.RespondError(c, utils.NewUnauthorizedError("invalid user in token"))
		return
	}

	c.Request = c.Request.WithContext(ctx)
	c.Set(ContextUserID, user.ID)
	c.Set(ContextRole, user.Role)
	c.Next()
}

// CurrentUserID returns the authenticated user, or 0 on public routes.
func CurrentUserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserID)
	userID, _ := id.(uint)
	return userID
}
