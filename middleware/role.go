// Package middleware file: middleware/role.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// RoleRequired blocks callers whose role is not in roles. It must run after
// AuthRequired.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login required", "code": "UNAUTHENTICATED"})
			c.Abort()
			return
		}
		if !allowed[actor.Role] {
			logger.Warn.Printf("[RoleRequired] %s (%s) blocked from %s", actor.ID, actor.Role, c.Request.URL.Path)
			c.JSON(http.StatusForbidden, gin.H{"error": "role is not allowed to perform this operation", "code": "ROLE_DENIED"})
			c.Abort()
			return
		}
		c.Next()
	}
}
