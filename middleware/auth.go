// Package middleware provides request filters and security checks for the application.
// File: middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// Session keys written by the login handler.
const (
	SessionUserKey = "user"
	SessionRoleKey = "role"
)

const actorContextKey = "actor"

// anonymousViewer is used for display screens that never log in.
var anonymousViewer = models.Actor{ID: "anonymous", Role: models.RoleSpectator}

// -------------- authentication middleware --------------

// AuthRequired rejects requests without a logged-in official and stores the
// caller's Actor on the context.
// Usage:
//
//	router.Use(AuthRequired)
func AuthRequired(c *gin.Context) {
	actor, ok := sessionActor(c)
	if !ok {
		logger.Warn.Printf("[AuthRequired] No official in session for %s %s", c.Request.Method, c.Request.URL.Path)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required", "code": "UNAUTHENTICATED"})
		c.Abort()
		return
	}

	c.Set(actorContextKey, actor)
	logger.Debug.Printf("[AuthRequired] %s (%s) authenticated", actor.ID, actor.Role)
	c.Next()
}

// Identify stores the logged-in official, or an anonymous spectator, on the
// context. Whether spectators may see anything is decided per session.
func Identify(c *gin.Context) {
	actor, ok := sessionActor(c)
	if !ok {
		actor = anonymousViewer
	}
	c.Set(actorContextKey, actor)
	c.Next()
}

// ActorFromContext returns the Actor stored by AuthRequired or Identify.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func sessionActor(c *gin.Context) (models.Actor, bool) {
	session := sessions.Default(c)
	user, _ := session.Get(SessionUserKey).(string)
	role, _ := session.Get(SessionRoleKey).(string)
	if user == "" || !models.Role(role).Valid() {
		return models.Actor{}, false
	}
	return models.Actor{ID: user, Role: models.Role(role)}, true
}
