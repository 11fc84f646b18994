package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// WebSocketAuthMiddleware reads the token from ?token= because browsers cannot
// set headers on a websocket handshake.
func WebSocketAuthMiddleware(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			utils.RespondError(c, utils.NewUnauthorizedError("token missing"))
			return
		}
		authenticate(c, verifier, token)
	}
}
