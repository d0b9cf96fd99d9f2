// File: models/live.go
package models

import "time"

// ------------------------ session model -----------------------

// SessionStatus is the lifecycle state of a LiveSession.
type SessionStatus string

const (
	SessionSetup     SessionStatus = "setup"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// TimeoutPolicy decides what happens when the attempt clock runs out.
type TimeoutPolicy string

const (
	TimeoutFail  TimeoutPolicy = "fail"
	TimeoutPause TimeoutPolicy = "pause"
)

// TimerState is the logical competition countdown.
type TimerState struct {
	Running   bool          `json:"running"`
	Duration  time.Duration `json:"duration"`
	Remaining time.Duration `json:"remaining"`
}

// SessionSettings are operator preferences for one session.
type SessionSettings struct {
	AutoAdvance     bool          `json:"autoAdvance"`
	ShowResults     bool          `json:"showResults"`
	SpectatorAccess bool          `json:"spectatorAccess"`
	TimeoutPolicy   TimeoutPolicy `json:"timeoutPolicy"`
}

// LiveSession is one competition run.
// CurrentAttemptID, CurrentAthleteID and CurrentAttemptNumber are set together or
// cleared together.
type LiveSession struct {
	ID                   string          `json:"id"`
	CompetitionID        string          `json:"competitionId"`
	Status               SessionStatus   `json:"status"`
	CurrentDiscipline    string          `json:"currentDiscipline,omitempty"`
	CurrentAttemptID     string          `json:"currentAttemptId,omitempty"`
	CurrentAthleteID     string          `json:"currentAthleteId,omitempty"`
	CurrentAttemptNumber int             `json:"currentAttemptNumber,omitempty"`
	CurrentRound         int             `json:"currentRound"`
	TotalRounds          int             `json:"totalRounds"`
	AwaitingNext         bool            `json:"awaitingNext"`
	Timer                TimerState      `json:"timer"`
	Judges               []string        `json:"judges"`
	Settings             SessionSettings `json:"settings"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	StartedAt            time.Time       `json:"startedAt,omitempty"`
	EndedAt              time.Time       `json:"endedAt,omitempty"`
}

// HasCurrent reports whether the current attempt pointer is set.
func (s LiveSession) HasCurrent() bool {
	return s.CurrentAttemptID != ""
}

// ------------------------- queue model ------------------------

// QueueStatus is the state of one scheduled attempt.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueCurrent   QueueStatus = "current"
	QueueCompleted QueueStatus = "completed"
	QueueFailed    QueueStatus = "failed"
)

// Final reports whether an item can no longer change.
func (s QueueStatus) Final() bool {
	return s == QueueCompleted || s == QueueFailed
}

// QueueItem is one scheduled attempt within a session.
type QueueItem struct {
	ID              string      `json:"id"`
	SessionID       string      `json:"sessionId"`
	AthleteID       string      `json:"athleteId"`
	AthleteName     string      `json:"athleteName"`
	Discipline      string      `json:"discipline"`
	AttemptNumber   int         `json:"attemptNumber"`
	RequestedWeight float64     `json:"requestedWeight"`
	Order           int         `json:"order"`
	Status          QueueStatus `json:"status"`
}

// -------------------------- lock model -------------------------

// AttemptLock is the lease held by the actor administering an attempt.
type AttemptLock struct {
	AttemptID  string    `json:"attemptId"`
	SessionID  string    `json:"sessionId"`
	HolderID   string    `json:"holderId"`
	LeaseID    string    `json:"leaseId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the lease has run out at now.
func (l AttemptLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// -------------------------- vote model -------------------------

// Decision is a single judge's call.
type Decision string

const (
	DecisionWhite Decision = "white" // pass
	DecisionRed   Decision = "red"   // fail
)

// Valid reports whether d is white or red.
func (d Decision) Valid() bool {
	return d == DecisionWhite || d == DecisionRed
}

// JudgeVote is one judge's decision on one attempt.
type JudgeVote struct {
	JudgeID  string    `json:"judgeId"`
	Decision Decision  `json:"decision"`
	At       time.Time `json:"at"`
	Notes    string    `json:"notes,omitempty"`
}

// Verdict is the aggregated outcome of an attempt.
type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictPassed  Verdict = "passed"
	VerdictFailed  Verdict = "failed"
)

// ------------------------- scoring model ------------------------

// Gender selects the Sinclair constants.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ScoringResult is derived, never stored. Nil fields are absent.
type ScoringResult struct {
	Coefficient *float64 `json:"coefficient"`
	Points      *float64 `json:"points"`
}

// AthleteProfile carries what scoring needs about one athlete.
type AthleteProfile struct {
	AthleteID  string   `json:"athleteId"`
	Name       string   `json:"name"`
	BodyWeight *float64 `json:"bodyWeight"`
	Gender     Gender   `json:"gender"`
}

// Standing is one ranked row once totals are known.
type Standing struct {
	Rank        int      `json:"rank"`
	AthleteID   string   `json:"athleteId"`
	Name        string   `json:"name"`
	Total       float64  `json:"total"`
	Coefficient *float64 `json:"coefficient"`
	Points      *float64 `json:"points"`
}
