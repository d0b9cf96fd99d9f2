// file: router.go
package main

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go-lift-control/config"
	"go-lift-control/controllers"
	"go-lift-control/middleware"
	"go-lift-control/models"
)

// setupRouter mounts every route. timers and hub may be nil.
func setupRouter(cfg config.Config, live controllers.LiveService, timers controllers.TimerControl, hub controllers.Subscriber) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if !cfg.Production() {
		router.Use(gin.Logger())
	}

	// judge tablets may embed the page in the venue dashboard only
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Frame-Options", "SAMEORIGIN")
		c.Next()
	})

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 2, // two competition days
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("liftsession", store))

	lc := controllers.NewLiveController(live, timers, hub)
	ac := controllers.NewAuthController(cfg.CredentialsFile)
	pc := controllers.NewPageController(cfg.ApplicationURL, cfg.WebsocketURL, func() int {
		return len(live.Sessions())
	})

	router.GET("/health", pc.Health)
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/me", middleware.AuthRequired, ac.Me)

	// Displays may watch without logging in when the session admits spectators.
	public := router.Group("/live", middleware.Identify)
	{
		public.GET("/config", pc.ClientConfig)
		public.GET("/ws", lc.Updates)
		public.GET("/sessions/:id/current", lc.CurrentAttempt)
	}

	officials := router.Group("/live", middleware.AuthRequired)
	{
		officials.GET("/sessions/:id", lc.GetSession)
		officials.GET("/sessions/:id/queue", lc.Queue)
		officials.GET("/sessions/:id/qrcode", pc.SessionQRCode)
		officials.POST("/sessions/:id/claim", lc.ClaimAttempt)
		officials.POST("/sessions/:id/attempts/:attemptId/release", lc.ReleaseAttempt)
		officials.POST("/sessions/:id/attempts/:attemptId/votes", lc.SubmitVote)
	}

	operators := router.Group("/live", middleware.AuthRequired, middleware.RoleRequired(models.RoleAdmin, models.RoleOperator))
	{
		operators.GET("/sessions", lc.ListSessions)
		operators.POST("/sessions", lc.CreateSession)
		operators.POST("/sessions/:id/status", lc.ChangeStatus)
		operators.POST("/sessions/:id/queue", lc.EnqueueAttempt)
		operators.PUT("/sessions/:id/queue/order", lc.ReorderQueue)
		operators.POST("/sessions/:id/attempts/:attemptId/advance", lc.AdvanceQueue)
		operators.POST("/sessions/:id/next", lc.StartNext)
		operators.POST("/sessions/:id/timer/start", lc.StartTimer)
		operators.POST("/sessions/:id/timer/stop", lc.StopTimer)
		operators.POST("/sessions/:id/standings", lc.Standings)
		operators.POST("/scoring", lc.Scoring)
	}

	router.POST("/live/locks/sweep", middleware.AuthRequired, middleware.RoleRequired(models.RoleAdmin), lc.SweepLocks)
	return router
}
