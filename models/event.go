// File: models/event.go
package models

import "time"

// EventType names a domain event emitted by the live engine.
type EventType string

const (
	EventAttemptClaimed      EventType = "attempt-claimed"
	EventAttemptReleased     EventType = "attempt-released"
	EventVoteRecorded        EventType = "vote-recorded"
	EventAttemptDecided      EventType = "attempt-decided"
	EventSessionStateChanged EventType = "session-state-changed"
	EventQueueUpdated        EventType = "queue-updated"
	EventTimerUpdated        EventType = "timer-updated"
)

// Event is delivered to subscribers after the state change has committed.
type Event struct {
	Type      EventType   `json:"action"`
	SessionID string      `json:"sessionId"`
	AttemptID string      `json:"attemptId,omitempty"`
	ActorID   string      `json:"actorId,omitempty"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload,omitempty"`
}

// AttemptDecision is the payload of an attempt-decided event.
type AttemptDecision struct {
	AttemptID string      `json:"attemptId"`
	AthleteID string      `json:"athleteId"`
	Verdict   Verdict     `json:"verdict"`
	Reason    string      `json:"reason"`
	Votes     []JudgeVote `json:"votes,omitempty"`
	Next      *QueueItem  `json:"next,omitempty"`
}
