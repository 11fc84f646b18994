package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// RoleCheck lets through the listed roles. Admins always pass.
func RoleCheck(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	allowed[models.RoleAdmin] = true
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			utils.RespondError(c, utils.NewUnauthorizedError("unauthorized"))
			return
		}
		if userRole, _ := role.(string); !allowed[userRole] {
			utils.RespondError(c, utils.ErrNoPermission)
			return
		}
		c.Next()
	}
}
