// File: controllers/admin_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go-lift-control/logger"
	"go-lift-control/middleware"
	"go-lift-control/models"
	"go-lift-control/services"
)

// ---------------- session administration ----------------

// ListSessions returns every known session.
func (lc *LiveController) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": lc.Service.Sessions()})
}

// GetSession returns one session.
func (lc *LiveController) GetSession(c *gin.Context) {
	session, err := lc.Service.Session(c.Param("id"))
	if err != nil {
		respondError(c, "GetSession", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type createSessionRequest struct {
	ID                  string                 `json:"id"`
	CompetitionID       string                 `json:"competitionId"`
	Discipline          string                 `json:"discipline"`
	Judges              []string               `json:"judges"`
	Settings            models.SessionSettings `json:"settings"`
	AttemptClockSeconds int                    `json:"attemptClockSeconds"`
	Items               []models.QueueItem     `json:"items"`
}

// CreateSession sets up a new session with its judges and queue.
func (lc *LiveController) CreateSession(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateSession", err)
		return
	}

	session, err := lc.Service.CreateSession(c.Request.Context(), actor, services.CreateSessionRequest{
		ID:            req.ID,
		CompetitionID: req.CompetitionID,
		Discipline:    req.Discipline,
		Judges:        req.Judges,
		Settings:      req.Settings,
		AttemptClock:  time.Duration(req.AttemptClockSeconds) * time.Second,
		Items:         req.Items,
	})
	if err != nil {
		respondError(c, "CreateSession", err)
		return
	}
	logger.Info.Printf("[CreateSession] %s created session=%s", actor.ID, session.ID)
	c.JSON(http.StatusCreated, session)
}

type statusRequest struct {
	Status models.SessionStatus `json:"status" binding:"required"`
}

// ChangeStatus starts, pauses, resumes or completes a session.
func (lc *LiveController) ChangeStatus(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ChangeStatus", err)
		return
	}

	sessionID := c.Param("id")
	session, err := lc.Service.ChangeSessionStatus(c.Request.Context(), sessionID, actor, req.Status)
	if err != nil {
		respondError(c, "ChangeStatus", err)
		return
	}
	if lc.Timers != nil && !session.Timer.Running {
		lc.Timers.Stop(sessionID)
	}
	c.JSON(http.StatusOK, session)
}

// ---------------- queue ----------------

// Queue lists the session's attempts in lift order.
func (lc *LiveController) Queue(c *gin.Context) {
	items, err := lc.Service.Queue(c.Param("id"))
	if err != nil {
		respondError(c, "Queue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// EnqueueAttempt appends an attempt to the queue.
func (lc *LiveController) EnqueueAttempt(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var item models.QueueItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "EnqueueAttempt", err)
		return
	}

	stored, err := lc.Service.EnqueueAttempt(c.Request.Context(), c.Param("id"), actor, item)
	if err != nil {
		respondError(c, "EnqueueAttempt", err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

type reorderRequest struct {
	Order map[string]int `json:"order" binding:"required"`
}

// ReorderQueue reassigns lift order for pending attempts.
func (lc *LiveController) ReorderQueue(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ReorderQueue", err)
		return
	}

	items, err := lc.Service.ReorderQueue(c.Request.Context(), c.Param("id"), actor, req.Order)
	if err != nil {
		respondError(c, "ReorderQueue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type advanceRequest struct {
	Verdict models.Verdict `json:"verdict" binding:"required"`
}

// AdvanceQueue records a manual verdict on the current attempt.
func (lc *LiveController) AdvanceQueue(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdvanceQueue", err)
		return
	}

	sessionID := c.Param("id")
	decision, err := lc.Service.AdvanceQueue(c.Request.Context(), sessionID, c.Param("attemptId"), actor, req.Verdict)
	if err != nil {
		respondError(c, "AdvanceQueue", err)
		return
	}
	if lc.Timers != nil {
		lc.Timers.Stop(sessionID)
	}
	c.JSON(http.StatusOK, decision)
}

// StartNext exposes the next attempt when auto-advance is off.
func (lc *LiveController) StartNext(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	item, err := lc.Service.StartNext(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, "StartNext", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ---------------- attempt clock ----------------

type timerRequest struct {
	DurationSeconds int `json:"durationSeconds"`
}

// StartTimer runs the attempt clock, optionally resetting it.
func (lc *LiveController) StartTimer(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	var req timerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "StartTimer", err)
			return
		}
	}

	sessionID := c.Param("id")
	timer, err := lc.Service.StartTimer(c.Request.Context(), sessionID, actor, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		respondError(c, "StartTimer", err)
		return
	}
	if lc.Timers != nil {
		lc.Timers.Start(sessionID)
	}
	c.JSON(http.StatusOK, timer)
}

// StopTimer halts the attempt clock.
func (lc *LiveController) StopTimer(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	sessionID := c.Param("id")
	timer, err := lc.Service.StopTimer(c.Request.Context(), sessionID, actor)
	if err != nil {
		respondError(c, "StopTimer", err)
		return
	}
	if lc.Timers != nil {
		lc.Timers.Stop(sessionID)
	}
	c.JSON(http.StatusOK, timer)
}

// ---------------- scoring ----------------

type scoringRequest struct {
	Total      *float64      `json:"total"`
	BodyWeight *float64      `json:"bodyWeight"`
	Gender     models.Gender `json:"gender"`
}

// Scoring computes Sinclair points for one total.
func (lc *LiveController) Scoring(c *gin.Context) {
	var req scoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Scoring", err)
		return
	}
	c.JSON(http.StatusOK, lc.Service.ComputeScoring(req.Total, req.BodyWeight, req.Gender))
}

type standingsRequest struct {
	Athletes []models.AthleteProfile `json:"athletes"`
}

// Standings ranks the session's athletes by Sinclair points.
func (lc *LiveController) Standings(c *gin.Context) {
	var req standingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Standings", err)
		return
	}
	standings, err := lc.Service.Standings(c.Param("id"), req.Athletes)
	if err != nil {
		respondError(c, "Standings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standings": standings})
}

// SweepLocks expires overdue leases immediately instead of waiting for the
// scheduled sweep.
func (lc *LiveController) SweepLocks(c *gin.Context) {
	expired := lc.Service.SweepExpiredLocks(c.Request.Context())
	logger.Info.Printf("[SweepLocks] manual sweep expired %d lease(s)", len(expired))
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
