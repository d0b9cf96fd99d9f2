// Package services: services/live_engine.go
package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go-lift-control/logger"
	"go-lift-control/models"
)

const (
	reasonVotes   = "votes"
	reasonManual  = "manual"
	reasonTimeout = "time expired"
)

// EngineDeps wires the engine's collaborators. Nil fields fall back to no-ops.
type EngineDeps struct {
	Publisher EventPublisher
	Store     SessionStore
	Metrics   MetricsRecorder
	Archiver  Archiver
	Lease     time.Duration
	Now       func() time.Time
}

// LiveEngine owns every live session and coordinates the queue, the lock
// manager and vote aggregation. Each session is guarded by its own mutex;
// the lock order is session, then queue, then attempt slot.
type LiveEngine struct {
	queue    *AttemptQueue
	locks    *LockManager
	events   EventPublisher
	store    SessionStore
	metrics  MetricsRecorder
	archiver Archiver
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu        sync.Mutex
	session   models.LiveSession
	ballot    *Ballot
	exposedAt time.Time
	decisions []models.AttemptDecision
}

// NewLiveEngine builds an engine with its own queue and lock manager.
func NewLiveEngine(deps EngineDeps) *LiveEngine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Archiver == nil {
		deps.Archiver = nopArchiver{}
	}
	queue := NewAttemptQueue()
	return &LiveEngine{
		queue:    queue,
		locks:    NewLockManager(queue, deps.Lease, deps.Now),
		events:   deps.Publisher,
		store:    deps.Store,
		metrics:  deps.Metrics,
		archiver: deps.Archiver,
		now:      deps.Now,
		sessions: make(map[string]*sessionState),
	}
}

// CreateSessionRequest describes a new session in setup.
type CreateSessionRequest struct {
	ID            string                 `json:"id"`
	CompetitionID string                 `json:"competitionId"`
	Discipline    string                 `json:"discipline"`
	Judges        []string               `json:"judges"`
	Settings      models.SessionSettings `json:"settings"`
	AttemptClock  time.Duration          `json:"attemptClock"`
	Items         []models.QueueItem     `json:"items"`
}

// VoteResult reports the ballot after a vote was recorded.
type VoteResult struct {
	Verdict  models.Verdict          `json:"verdict"`
	Votes    []models.JudgeVote      `json:"votes"`
	Decision *models.AttemptDecision `json:"decision,omitempty"`
}

// CurrentAttemptView is what callers see of the in-progress attempt.
type CurrentAttemptView struct {
	Session models.LiveSession  `json:"session"`
	Attempt *models.QueueItem   `json:"attempt,omitempty"`
	Next    *models.QueueItem   `json:"next,omitempty"`
	Lock    *models.AttemptLock `json:"lock,omitempty"`
	Verdict models.Verdict      `json:"verdict,omitempty"`
	Votes   []models.JudgeVote  `json:"votes,omitempty"`
}

// ------------------------- session lifecycle -------------------------

// CreateSession registers a session in setup with its judges and queue.
func (e *LiveEngine) CreateSession(ctx context.Context, actor models.Actor, req CreateSessionRequest) (models.LiveSession, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.LiveSession{}, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Settings.TimeoutPolicy == "" {
		req.Settings.TimeoutPolicy = models.TimeoutFail
	}
	if req.Settings.TimeoutPolicy != models.TimeoutFail && req.Settings.TimeoutPolicy != models.TimeoutPause {
		return models.LiveSession{}, fmt.Errorf("%w: timeout policy %q", ErrInvalidInput, req.Settings.TimeoutPolicy)
	}
	if req.AttemptClock < 0 {
		return models.LiveSession{}, fmt.Errorf("%w: negative attempt clock", ErrInvalidInput)
	}

	e.mu.Lock()
	if _, exists := e.sessions[req.ID]; exists {
		e.mu.Unlock()
		return models.LiveSession{}, fmt.Errorf("%w: %s", ErrSessionExists, req.ID)
	}
	st := &sessionState{}
	st.mu.Lock()
	e.sessions[req.ID] = st
	e.mu.Unlock()

	for _, item := range req.Items {
		item.SessionID = req.ID
		if _, err := e.queue.Enqueue(item); err != nil {
			e.queue.remove(req.ID)
			e.mu.Lock()
			delete(e.sessions, req.ID)
			e.mu.Unlock()
			st.mu.Unlock()
			return models.LiveSession{}, err
		}
	}

	now := e.now()
	st.session = models.LiveSession{
		ID:                req.ID,
		CompetitionID:     req.CompetitionID,
		Status:            models.SessionSetup,
		CurrentDiscipline: req.Discipline,
		TotalRounds:       totalRounds(e.queue.Items(req.ID)),
		Timer:             models.TimerState{Duration: req.AttemptClock, Remaining: req.AttemptClock},
		Judges:            dedupe(req.Judges),
		Settings:          req.Settings,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	snapshot := st.snapshot()
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.CreateSession] session=%s created by %s with %d items and %d judges",
		snapshot.ID, actor.ID, len(req.Items), len(snapshot.Judges))

	e.persist(ctx, snapshot, e.queue.Items(snapshot.ID))
	e.publish(models.EventSessionStateChanged, snapshot.ID, "", actor.ID, snapshot)
	return snapshot, nil
}

// ChangeSessionStatus moves a session through setup, active, paused and
// completed. Only active and paused may alternate.
func (e *LiveEngine) ChangeSessionStatus(ctx context.Context, sessionID string, actor models.Actor, target models.SessionStatus) (models.LiveSession, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.LiveSession{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.LiveSession{}, err
	}

	from := st.session.Status
	if !allowedTransition(from, target) {
		st.mu.Unlock()
		return models.LiveSession{}, fmt.Errorf("%w: %s -> %s", ErrInvalidSessionState, from, target)
	}

	now := e.now()
	var released *models.AttemptLock
	var requeued []models.QueueItem
	switch target {
	case models.SessionActive:
		if from == models.SessionSetup {
			if e.queue.Remaining(sessionID) == 0 || len(st.session.Judges) == 0 {
				st.mu.Unlock()
				return models.LiveSession{}, fmt.Errorf("%w: a session needs queued attempts and judges to start", ErrInvalidSessionState)
			}
			st.session.StartedAt = now
		}
	case models.SessionPaused:
		st.session.Timer.Running = false
	case models.SessionCompleted:
		// an unfinished attempt was never lifted; it goes back to pending
		if cur, ok := e.queue.requeueCurrent(sessionID); ok {
			released = e.locks.ForceRelease(sessionID, cur.ID)
			requeued = append(requeued, cur)
		}
		st.clearCurrent()
		st.session.AwaitingNext = false
		st.session.Timer.Running = false
		st.session.EndedAt = now
	}
	st.session.Status = target
	st.session.UpdatedAt = now
	snapshot := st.snapshot()
	decisions := append([]models.AttemptDecision(nil), st.decisions...)
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.ChangeSessionStatus] session=%s %s -> %s by %s", sessionID, from, target, actor.ID)

	e.persist(ctx, snapshot, requeued)
	if released != nil {
		e.publish(models.EventAttemptReleased, sessionID, released.AttemptID, actor.ID, released)
	}
	e.publish(models.EventSessionStateChanged, sessionID, "", actor.ID, snapshot)

	if target == models.SessionCompleted {
		archive := models.SessionArchive{
			Session:    snapshot,
			Queue:      e.queue.Items(sessionID),
			Decisions:  decisions,
			ArchivedAt: now,
		}
		if err := e.archiver.ArchiveSession(ctx, archive); err != nil {
			logger.Error.Printf("[LiveEngine.ChangeSessionStatus] archive of session=%s failed: %v", sessionID, err)
		}
	}
	return snapshot, nil
}

func allowedTransition(from, to models.SessionStatus) bool {
	switch from {
	case models.SessionSetup:
		return to == models.SessionActive
	case models.SessionActive:
		return to == models.SessionPaused || to == models.SessionCompleted
	case models.SessionPaused:
		return to == models.SessionActive || to == models.SessionCompleted
	}
	return false
}

// ----------------------------- claims -----------------------------

// ClaimNextAttempt gives actor the exclusive lease on the session's current
// attempt.
func (e *LiveEngine) ClaimNextAttempt(ctx context.Context, sessionID string, actor models.Actor) (ClaimResult, error) {
	if err := requireRole(actor, models.RoleJudge, models.RoleAdmin); err != nil {
		return ClaimResult{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return ClaimResult{}, err
	}

	if st.session.Status != models.SessionActive {
		st.mu.Unlock()
		return ClaimResult{}, fmt.Errorf("%w: cannot claim while %s", ErrInvalidSessionState, st.session.Status)
	}
	if st.session.AwaitingNext {
		st.mu.Unlock()
		return ClaimResult{}, fmt.Errorf("%w: waiting for the next attempt to be started", ErrInvalidSessionState)
	}

	res, err := e.locks.Claim(sessionID, actor.ID)
	if err != nil {
		st.mu.Unlock()
		if IsConflict(err) {
			e.metrics.ClaimContention(sessionID)
		}
		return ClaimResult{}, err
	}

	if st.session.CurrentAttemptID != res.Attempt.ID {
		e.setCurrent(st, res.Attempt)
	}
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	if res.Reclaimed {
		e.metrics.LockExpired(sessionID)
	}
	e.persist(ctx, snapshot, e.queue.Items(sessionID))
	e.publish(models.EventAttemptClaimed, sessionID, res.Attempt.ID, actor.ID, res)
	return res, nil
}

// ReleaseAttempt gives up actor's lease on attemptID. Releasing an attempt
// nobody holds is a no-op.
func (e *LiveEngine) ReleaseAttempt(ctx context.Context, sessionID, attemptID string, actor models.Actor) (*models.QueueItem, error) {
	if err := requireRole(actor, models.RoleJudge, models.RoleAdmin); err != nil {
		return nil, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := e.queue.Get(sessionID, attemptID); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	item, err := e.locks.Release(sessionID, attemptID, actor.ID)
	st.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if item != nil {
		e.publish(models.EventAttemptReleased, sessionID, attemptID, actor.ID, item)
	}
	return item, nil
}

// SweepExpiredLocks drops every lease that has run out so the attempts can be
// claimed again.
func (e *LiveEngine) SweepExpiredLocks(ctx context.Context) []models.AttemptLock {
	expired := e.locks.ExpireSweep(e.now())
	for _, l := range expired {
		e.metrics.LockExpired(l.SessionID)
		e.publish(models.EventAttemptReleased, l.SessionID, l.AttemptID, l.HolderID, l)
	}
	if len(expired) > 0 {
		logger.Info.Printf("[LiveEngine.SweepExpiredLocks] released %d expired leases", len(expired))
	}
	return expired
}

// ----------------------------- voting -----------------------------

// SubmitVote records actor's decision on the current attempt. Once the ballot
// reaches a verdict the attempt is finished and the queue advances.
func (e *LiveEngine) SubmitVote(ctx context.Context, sessionID, attemptID string, actor models.Actor, decision models.Decision, notes string) (VoteResult, error) {
	if err := requireRole(actor, models.RoleJudge, models.RoleAdmin); err != nil {
		return VoteResult{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return VoteResult{}, err
	}

	if st.session.Status != models.SessionActive {
		st.mu.Unlock()
		return VoteResult{}, fmt.Errorf("%w: cannot vote while %s", ErrInvalidSessionState, st.session.Status)
	}
	if !st.session.HasCurrent() || st.session.CurrentAttemptID != attemptID {
		st.mu.Unlock()
		return VoteResult{}, fmt.Errorf("%w: %s", ErrNotCurrent, attemptID)
	}

	if st.ballot == nil || st.ballot.AttemptID != attemptID {
		st.ballot = NewBallot(attemptID, st.session.Judges)
	}
	vote := models.JudgeVote{JudgeID: actor.ID, Decision: decision, At: e.now(), Notes: notes}
	if err := st.ballot.Record(vote); err != nil {
		st.mu.Unlock()
		return VoteResult{}, err
	}

	verdict, votes := st.ballot.Tally()
	result := VoteResult{Verdict: verdict, Votes: votes}

	var latency time.Duration
	if verdict != models.VerdictPending {
		latency = e.now().Sub(st.exposedAt)
		dec, err := e.finishAttempt(st, attemptID, verdict, reasonVotes)
		if err != nil {
			st.mu.Unlock()
			return VoteResult{}, err
		}
		result.Decision = &dec
	}
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.SubmitVote] session=%s attempt=%s judge=%s decision=%s verdict=%s",
		sessionID, attemptID, actor.ID, decision, verdict)

	if e.store != nil {
		if err := e.store.SaveVote(ctx, sessionID, attemptID, vote); err != nil {
			logger.Error.Printf("[LiveEngine.SubmitVote] failed to persist vote: %v", err)
		}
	}
	e.publish(models.EventVoteRecorded, sessionID, attemptID, actor.ID, vote)

	if result.Decision != nil {
		e.metrics.AttemptDecided(sessionID, verdict, latency)
		e.persist(ctx, snapshot, e.queue.Items(sessionID))
		e.publish(models.EventAttemptDecided, sessionID, attemptID, actor.ID, *result.Decision)
	}
	return result, nil
}

// AdvanceQueue lets an operator rule on the current attempt directly. An
// empty attemptID targets whatever attempt is current.
func (e *LiveEngine) AdvanceQueue(ctx context.Context, sessionID, attemptID string, actor models.Actor, verdict models.Verdict) (models.AttemptDecision, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.AttemptDecision{}, err
	}
	if verdict != models.VerdictPassed && verdict != models.VerdictFailed {
		return models.AttemptDecision{}, fmt.Errorf("%w: verdict %q", ErrInvalidInput, verdict)
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.AttemptDecision{}, err
	}

	if st.session.Status != models.SessionActive || st.session.AwaitingNext {
		st.mu.Unlock()
		return models.AttemptDecision{}, fmt.Errorf("%w: cannot advance while %s", ErrInvalidSessionState, st.describe())
	}
	cur, err := e.queue.ensureCurrent(sessionID)
	if err != nil {
		st.mu.Unlock()
		return models.AttemptDecision{}, err
	}
	if attemptID != "" && attemptID != cur.ID {
		st.mu.Unlock()
		return models.AttemptDecision{}, fmt.Errorf("%w: %s", ErrNotCurrent, attemptID)
	}
	if st.session.CurrentAttemptID != cur.ID {
		e.setCurrent(st, cur)
	}

	latency := e.now().Sub(st.exposedAt)
	dec, err := e.finishAttempt(st, cur.ID, verdict, reasonManual)
	if err != nil {
		st.mu.Unlock()
		return models.AttemptDecision{}, err
	}
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.AdvanceQueue] session=%s attempt=%s ruled %s by %s", sessionID, cur.ID, verdict, actor.ID)

	e.metrics.AttemptDecided(sessionID, verdict, latency)
	e.persist(ctx, snapshot, e.queue.Items(sessionID))
	e.publish(models.EventAttemptDecided, sessionID, cur.ID, actor.ID, dec)
	return dec, nil
}

// StartNext exposes the next attempt when the session is waiting for an
// explicit start after a decision.
func (e *LiveEngine) StartNext(ctx context.Context, sessionID string, actor models.Actor) (models.QueueItem, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.QueueItem{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.QueueItem{}, err
	}

	if st.session.Status != models.SessionActive || !st.session.AwaitingNext {
		st.mu.Unlock()
		return models.QueueItem{}, fmt.Errorf("%w: nothing to start while %s", ErrInvalidSessionState, st.describe())
	}
	next, err := e.queue.ensureCurrent(sessionID)
	if err != nil {
		st.session.AwaitingNext = false
		st.mu.Unlock()
		return models.QueueItem{}, err
	}
	st.session.AwaitingNext = false
	e.setCurrent(st, next)
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.StartNext] session=%s attempt=%s started by %s", sessionID, next.ID, actor.ID)

	e.persist(ctx, snapshot, nil)
	e.publish(models.EventQueueUpdated, sessionID, next.ID, actor.ID, next)
	return next, nil
}

// finishAttempt applies a final verdict: the queue advances, the lease is
// dropped and the session pointer moves on. Caller holds st.mu.
func (e *LiveEngine) finishAttempt(st *sessionState, attemptID string, verdict models.Verdict, reason string) (models.AttemptDecision, error) {
	sessionID := st.session.ID
	done, err := e.queue.Get(sessionID, attemptID)
	if err != nil {
		return models.AttemptDecision{}, err
	}
	next, err := e.queue.Advance(sessionID, attemptID, verdict)
	if err != nil {
		return models.AttemptDecision{}, err
	}
	e.locks.ForceRelease(sessionID, attemptID)

	dec := models.AttemptDecision{
		AttemptID: attemptID,
		AthleteID: done.AthleteID,
		Verdict:   verdict,
		Reason:    reason,
		Next:      next,
	}
	if st.ballot != nil && st.ballot.AttemptID == attemptID {
		dec.Votes = st.ballot.Votes()
	}
	st.ballot = nil
	st.decisions = append(st.decisions, dec)

	st.session.AwaitingNext = false
	switch {
	case next == nil:
		st.clearCurrent()
		st.stopTimer()
	case st.session.Settings.AutoAdvance:
		e.setCurrent(st, *next)
	default:
		st.clearCurrent()
		st.stopTimer()
		st.session.AwaitingNext = true
	}
	return dec, nil
}

// -------------------------------- reads --------------------------------

// GetCurrentAttempt returns the in-progress attempt as actor may see it.
func (e *LiveEngine) GetCurrentAttempt(sessionID string, actor models.Actor) (CurrentAttemptView, error) {
	if !actor.Role.Valid() {
		return CurrentAttemptView{}, fmt.Errorf("%w: %q", ErrRoleDenied, actor.Role)
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return CurrentAttemptView{}, err
	}
	defer st.mu.Unlock()

	settings := st.session.Settings
	spectator := actor.Role == models.RoleSpectator
	if spectator && !settings.SpectatorAccess {
		return CurrentAttemptView{}, fmt.Errorf("%w: spectators are not admitted to this session", ErrRoleDenied)
	}

	view := CurrentAttemptView{Session: st.snapshot()}
	if st.session.HasCurrent() {
		if item, err := e.queue.Get(sessionID, st.session.CurrentAttemptID); err == nil {
			view.Attempt = &item
		}
		if l, ok := e.locks.Holder(sessionID, st.session.CurrentAttemptID); ok {
			view.Lock = &l
		}
		if st.ballot != nil && st.ballot.AttemptID == st.session.CurrentAttemptID {
			verdict, votes := st.ballot.Tally()
			view.Verdict = verdict
			if !spectator || settings.ShowResults {
				view.Votes = votes
			}
		} else {
			view.Verdict = models.VerdictPending
		}
	} else if next, ok := e.queue.PeekNext(sessionID); ok {
		view.Next = &next
	}
	return view, nil
}

// Session returns a snapshot of one session.
func (e *LiveEngine) Session(sessionID string) (models.LiveSession, error) {
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.LiveSession{}, err
	}
	defer st.mu.Unlock()
	return st.snapshot(), nil
}

// Sessions lists every known session ordered by creation time.
func (e *LiveEngine) Sessions() []models.LiveSession {
	e.mu.RLock()
	states := make([]*sessionState, 0, len(e.sessions))
	for _, st := range e.sessions {
		states = append(states, st)
	}
	e.mu.RUnlock()

	out := make([]models.LiveSession, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if st.session.ID != "" {
			out = append(out, st.snapshot())
		}
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Queue returns the session's queue in lift order.
func (e *LiveEngine) Queue(sessionID string) ([]models.QueueItem, error) {
	if !e.hasSession(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return e.queue.Items(sessionID), nil
}

// ComputeScoring is the Sinclair calculation exposed to calling surfaces.
func (e *LiveEngine) ComputeScoring(total, bodyWeight *float64, gender models.Gender) models.ScoringResult {
	return SinclairPoints(total, bodyWeight, gender)
}

// Standings ranks the session's athletes from their decided attempts.
func (e *LiveEngine) Standings(sessionID string, athletes []models.AthleteProfile) ([]models.Standing, error) {
	items, err := e.Queue(sessionID)
	if err != nil {
		return nil, err
	}
	return BuildStandings(items, athletes), nil
}

// ------------------------------ queue edits ------------------------------

// EnqueueAttempt adds an attempt to a session that has not completed.
func (e *LiveEngine) EnqueueAttempt(ctx context.Context, sessionID string, actor models.Actor, item models.QueueItem) (models.QueueItem, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.QueueItem{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.QueueItem{}, err
	}
	if st.session.Status == models.SessionCompleted {
		st.mu.Unlock()
		return models.QueueItem{}, fmt.Errorf("%w: session is completed", ErrInvalidSessionState)
	}
	item.SessionID = sessionID
	stored, err := e.queue.Enqueue(item)
	if err != nil {
		st.mu.Unlock()
		return models.QueueItem{}, err
	}
	items := e.queue.Items(sessionID)
	st.session.TotalRounds = totalRounds(items)
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	e.persist(ctx, snapshot, []models.QueueItem{stored})
	e.publish(models.EventQueueUpdated, sessionID, stored.ID, actor.ID, items)
	return stored, nil
}

// ReorderQueue reassigns the order of pending attempts.
func (e *LiveEngine) ReorderQueue(ctx context.Context, sessionID string, actor models.Actor, assignment map[string]int) ([]models.QueueItem, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return nil, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return nil, err
	}
	if st.session.Status == models.SessionCompleted {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: session is completed", ErrInvalidSessionState)
	}
	if err := e.queue.Reorder(sessionID, assignment); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	items := e.queue.Items(sessionID)
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	e.persist(ctx, snapshot, items)
	e.publish(models.EventQueueUpdated, sessionID, "", actor.ID, items)
	return items, nil
}

// -------------------------------- timer --------------------------------

// StartTimer runs the attempt clock. A positive duration resets it.
func (e *LiveEngine) StartTimer(ctx context.Context, sessionID string, actor models.Actor, duration time.Duration) (models.TimerState, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.TimerState{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.TimerState{}, err
	}
	if st.session.Status != models.SessionActive {
		st.mu.Unlock()
		return models.TimerState{}, fmt.Errorf("%w: timer needs an active session", ErrInvalidSessionState)
	}
	if duration > 0 {
		st.session.Timer.Duration = duration
		st.session.Timer.Remaining = duration
	}
	if st.session.Timer.Remaining <= 0 {
		st.session.Timer.Remaining = st.session.Timer.Duration
	}
	if st.session.Timer.Remaining <= 0 {
		st.mu.Unlock()
		return models.TimerState{}, fmt.Errorf("%w: no attempt clock configured", ErrInvalidInput)
	}
	st.session.Timer.Running = true
	st.session.UpdatedAt = e.now()
	timer := st.session.Timer
	snapshot := st.snapshot()
	st.mu.Unlock()

	e.persist(ctx, snapshot, nil)
	e.publish(models.EventTimerUpdated, sessionID, snapshot.CurrentAttemptID, actor.ID, timer)
	return timer, nil
}

// StopTimer halts the attempt clock, keeping the remaining time.
func (e *LiveEngine) StopTimer(ctx context.Context, sessionID string, actor models.Actor) (models.TimerState, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleOperator); err != nil {
		return models.TimerState{}, err
	}
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.TimerState{}, err
	}
	st.session.Timer.Running = false
	st.session.UpdatedAt = e.now()
	timer := st.session.Timer
	snapshot := st.snapshot()
	st.mu.Unlock()

	e.persist(ctx, snapshot, nil)
	e.publish(models.EventTimerUpdated, sessionID, snapshot.CurrentAttemptID, actor.ID, timer)
	return timer, nil
}

// TickTimer counts the clock down by elapsed. Reaching zero applies the
// session's timeout policy.
func (e *LiveEngine) TickTimer(ctx context.Context, sessionID string, elapsed time.Duration) (models.TimerState, error) {
	st, err := e.lockSession(sessionID)
	if err != nil {
		return models.TimerState{}, err
	}
	if !st.session.Timer.Running || st.session.Status != models.SessionActive {
		timer := st.session.Timer
		st.mu.Unlock()
		return timer, nil
	}
	st.session.Timer.Remaining -= elapsed
	if st.session.Timer.Remaining > 0 {
		timer := st.session.Timer
		st.mu.Unlock()
		e.publish(models.EventTimerUpdated, sessionID, "", "", timer)
		return timer, nil
	}
	st.mu.Unlock()

	if _, err := e.OnTimerExpire(ctx, sessionID); err != nil {
		return models.TimerState{}, err
	}
	s, err := e.Session(sessionID)
	return s.Timer, err
}

// OnTimerExpire handles a running clock reaching zero. Under the fail policy
// the current attempt fails through the normal advance path; under the pause
// policy the session is paused. It returns the decision, if one was made.
func (e *LiveEngine) OnTimerExpire(ctx context.Context, sessionID string) (*models.AttemptDecision, error) {
	st, err := e.lockSession(sessionID)
	if err != nil {
		return nil, err
	}
	if !st.session.Timer.Running || st.session.Status != models.SessionActive {
		st.mu.Unlock()
		return nil, nil
	}
	st.session.Timer.Running = false
	st.session.Timer.Remaining = 0

	var (
		dec     *models.AttemptDecision
		latency time.Duration
	)
	if st.session.Settings.TimeoutPolicy == models.TimeoutPause {
		st.session.Status = models.SessionPaused
	} else if st.session.HasCurrent() {
		latency = e.now().Sub(st.exposedAt)
		d, err := e.finishAttempt(st, st.session.CurrentAttemptID, models.VerdictFailed, reasonTimeout)
		if err != nil {
			st.mu.Unlock()
			return nil, err
		}
		dec = &d
	}
	st.session.UpdatedAt = e.now()
	snapshot := st.snapshot()
	st.mu.Unlock()

	logger.Info.Printf("[LiveEngine.OnTimerExpire] session=%s clock expired, policy=%s", sessionID, snapshot.Settings.TimeoutPolicy)

	e.persist(ctx, snapshot, e.queue.Items(sessionID))
	e.publish(models.EventTimerUpdated, sessionID, "", "", snapshot.Timer)
	if dec != nil {
		e.metrics.AttemptDecided(sessionID, dec.Verdict, latency)
		e.publish(models.EventAttemptDecided, sessionID, dec.AttemptID, "", *dec)
	} else if snapshot.Status == models.SessionPaused {
		e.publish(models.EventSessionStateChanged, sessionID, "", "", snapshot)
	}
	return dec, nil
}

// ------------------------------- recovery -------------------------------

// Restore rebuilds sessions and queues from the store. Leases are not
// persisted, so every restored attempt starts unclaimed.
func (e *LiveEngine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	sessions, err := e.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	for _, s := range sessions {
		items, err := e.store.ListQueueItems(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("listing queue of session %s: %w", s.ID, err)
		}
		st := &sessionState{session: s, exposedAt: e.now()}
		if s.HasCurrent() {
			votes, err := e.store.ListVotes(ctx, s.ID, s.CurrentAttemptID)
			if err != nil {
				return fmt.Errorf("listing votes of session %s: %w", s.ID, err)
			}
			st.ballot = NewBallot(s.CurrentAttemptID, s.Judges)
			for _, v := range votes {
				if err := st.ballot.Record(v); err != nil {
					logger.Warn.Printf("[LiveEngine.Restore] dropping stored vote of %s: %v", v.JudgeID, err)
				}
			}
		}
		st.session.Timer.Running = false

		e.queue.restore(s.ID, items)
		e.mu.Lock()
		e.sessions[s.ID] = st
		e.mu.Unlock()
	}
	logger.Info.Printf("[LiveEngine.Restore] restored %d sessions", len(sessions))
	return nil
}

// ------------------------------- helpers -------------------------------

func (e *LiveEngine) hasSession(sessionID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.sessions[sessionID]
	return ok
}

// lockSession returns the session state with its mutex held.
func (e *LiveEngine) lockSession(sessionID string) (*sessionState, error) {
	e.mu.RLock()
	st, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	st.mu.Lock()
	if st.session.ID == "" {
		// creation was rolled back while we waited
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return st, nil
}

// setCurrent points the session at item and resets the clock. Caller holds st.mu.
func (e *LiveEngine) setCurrent(st *sessionState, item models.QueueItem) {
	st.session.CurrentAttemptID = item.ID
	st.session.CurrentAthleteID = item.AthleteID
	st.session.CurrentAttemptNumber = item.AttemptNumber
	st.session.CurrentRound = item.AttemptNumber
	if item.Discipline != "" {
		st.session.CurrentDiscipline = item.Discipline
	}
	st.session.Timer.Running = false
	st.session.Timer.Remaining = st.session.Timer.Duration
	st.exposedAt = e.now()
	if st.ballot != nil && st.ballot.AttemptID != item.ID {
		st.ballot = nil
	}
}

func (e *LiveEngine) persist(ctx context.Context, session models.LiveSession, items []models.QueueItem) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSession(ctx, session); err != nil {
		logger.Error.Printf("[LiveEngine.persist] saving session=%s failed: %v", session.ID, err)
	}
	if len(items) == 0 {
		return
	}
	if err := e.store.SaveQueueItems(ctx, items); err != nil {
		logger.Error.Printf("[LiveEngine.persist] saving queue of session=%s failed: %v", session.ID, err)
	}
}

func (e *LiveEngine) publish(t models.EventType, sessionID, attemptID, actorID string, payload interface{}) {
	e.events.Publish(models.Event{
		Type:      t,
		SessionID: sessionID,
		AttemptID: attemptID,
		ActorID:   actorID,
		At:        e.now(),
		Payload:   payload,
	})
}

func (st *sessionState) clearCurrent() {
	st.session.CurrentAttemptID = ""
	st.session.CurrentAthleteID = ""
	st.session.CurrentAttemptNumber = 0
}

func (st *sessionState) stopTimer() {
	st.session.Timer.Running = false
	st.session.Timer.Remaining = st.session.Timer.Duration
}

func (st *sessionState) snapshot() models.LiveSession {
	s := st.session
	s.Judges = append([]string(nil), st.session.Judges...)
	return s
}

func (st *sessionState) describe() string {
	if st.session.AwaitingNext {
		return string(st.session.Status) + " (awaiting next)"
	}
	return string(st.session.Status)
}

func requireRole(actor models.Actor, allowed ...models.Role) error {
	for _, r := range allowed {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not do this", ErrRoleDenied, actor.Role)
}

func totalRounds(items []models.QueueItem) int {
	rounds := 0
	for _, it := range items {
		if it.AttemptNumber > rounds {
			rounds = it.AttemptNumber
		}
	}
	return rounds
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
