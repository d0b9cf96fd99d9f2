// Package controllers exposes the live engine over HTTP.
// File: controllers/live_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go-lift-control/logger"
	"go-lift-control/middleware"
	"go-lift-control/models"
	"go-lift-control/services"
)

// LiveService is the engine surface the HTTP layer drives.
type LiveService interface {
	CreateSession(ctx context.Context, actor models.Actor, req services.CreateSessionRequest) (models.LiveSession, error)
	ChangeSessionStatus(ctx context.Context, sessionID string, actor models.Actor, target models.SessionStatus) (models.LiveSession, error)
	ClaimNextAttempt(ctx context.Context, sessionID string, actor models.Actor) (services.ClaimResult, error)
	ReleaseAttempt(ctx context.Context, sessionID, attemptID string, actor models.Actor) (*models.QueueItem, error)
	SubmitVote(ctx context.Context, sessionID, attemptID string, actor models.Actor, decision models.Decision, notes string) (services.VoteResult, error)
	AdvanceQueue(ctx context.Context, sessionID, attemptID string, actor models.Actor, verdict models.Verdict) (models.AttemptDecision, error)
	StartNext(ctx context.Context, sessionID string, actor models.Actor) (models.QueueItem, error)
	GetCurrentAttempt(sessionID string, actor models.Actor) (services.CurrentAttemptView, error)
	Session(sessionID string) (models.LiveSession, error)
	Sessions() []models.LiveSession
	Queue(sessionID string) ([]models.QueueItem, error)
	EnqueueAttempt(ctx context.Context, sessionID string, actor models.Actor, item models.QueueItem) (models.QueueItem, error)
	ReorderQueue(ctx context.Context, sessionID string, actor models.Actor, assignment map[string]int) ([]models.QueueItem, error)
	StartTimer(ctx context.Context, sessionID string, actor models.Actor, duration time.Duration) (models.TimerState, error)
	StopTimer(ctx context.Context, sessionID string, actor models.Actor) (models.TimerState, error)
	ComputeScoring(total, bodyWeight *float64, gender models.Gender) models.ScoringResult
	Standings(sessionID string, athletes []models.AthleteProfile) ([]models.Standing, error)
	SweepExpiredLocks(ctx context.Context) []models.AttemptLock
}

// TimerControl starts and stops the ticker behind a session's attempt clock.
type TimerControl interface {
	Start(sessionID string)
	Stop(sessionID string)
}

// Subscriber attaches a websocket client to a session.
type Subscriber interface {
	ServeWs(w http.ResponseWriter, r *http.Request, sessionID string, actor models.Actor)
}

// LiveController serves judges, operators and displays.
type LiveController struct {
	Service LiveService
	Timers  TimerControl
	Hub     Subscriber
}

// NewLiveController creates a LiveController. timers and hub may be nil.
func NewLiveController(service LiveService, timers TimerControl, hub Subscriber) *LiveController {
	logger.Debug.Println("[NewLiveController] Initializing LiveController")
	return &LiveController{Service: service, Timers: timers, Hub: hub}
}

// ---------------- judge operations ----------------

// CurrentAttempt returns the attempt in progress as the caller may see it.
func (lc *LiveController) CurrentAttempt(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	view, err := lc.Service.GetCurrentAttempt(c.Param("id"), actor)
	if err != nil {
		respondError(c, "CurrentAttempt", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ClaimAttempt takes the lease on the session's current attempt.
func (lc *LiveController) ClaimAttempt(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	sessionID := c.Param("id")
	logger.Info.Printf("[ClaimAttempt] %s claiming in session=%s", actor.ID, sessionID)

	res, err := lc.Service.ClaimNextAttempt(c.Request.Context(), sessionID, actor)
	if err != nil {
		respondError(c, "ClaimAttempt", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReleaseAttempt gives up the caller's lease.
func (lc *LiveController) ReleaseAttempt(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	item, err := lc.Service.ReleaseAttempt(c.Request.Context(), c.Param("id"), c.Param("attemptId"), actor)
	if err != nil {
		respondError(c, "ReleaseAttempt", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": item != nil, "attempt": item})
}

type voteRequest struct {
	Decision models.Decision `json:"decision" binding:"required"`
	Notes    string          `json:"notes"`
}

// SubmitVote records the caller's decision on an attempt.
func (lc *LiveController) SubmitVote(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "SubmitVote", err)
		return
	}

	res, err := lc.Service.SubmitVote(c.Request.Context(), c.Param("id"), c.Param("attemptId"), actor, req.Decision, req.Notes)
	if err != nil {
		respondError(c, "SubmitVote", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Updates upgrades to a websocket subscribed to ?session=.
func (lc *LiveController) Updates(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session query parameter is required", "code": "INVALID_INPUT"})
		return
	}
	// spectator gating happens before the upgrade
	if _, err := lc.Service.GetCurrentAttempt(sessionID, actor); err != nil {
		respondError(c, "Updates", err)
		return
	}
	if lc.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates unavailable", "code": "UNAVAILABLE"})
		return
	}
	lc.Hub.ServeWs(c.Writer, c.Request, sessionID, actor)
}

// ---------------- error mapping ----------------

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound, services.KindNoAttemptsAvailable:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindInvalidState:
		return http.StatusUnprocessableEntity
	case services.KindUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes the JSON error body for err. Contention is expected
// traffic and logs at INFO.
func respondError(c *gin.Context, op string, err error) {
	e, ok := services.AsError(err)
	if !ok {
		logger.Error.Printf("[%s] %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
		return
	}

	if e.Kind == services.KindConflict {
		logger.Info.Printf("[%s] contention: %v", op, err)
	} else {
		logger.Warn.Printf("[%s] %v", op, err)
	}
	body := gin.H{"error": e.Message, "code": e.Code}
	if detail := err.Error(); detail != e.Message {
		body["detail"] = detail
	}
	c.JSON(statusFor(e.Kind), body)
}

func badRequest(c *gin.Context, op string, err error) {
	logger.Warn.Printf("[%s] invalid request body: %v", op, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": "INVALID_INPUT"})
}
