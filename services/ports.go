// Package services: services/ports.go
package services

import (
	"context"
	"time"

	"go-lift-control/models"
)

// EventPublisher delivers domain events. Publish must not block on slow
// subscribers; delivery failures stay inside the publisher.
type EventPublisher interface {
	Publish(event models.Event)
}

// SessionStore persists session aggregates. Attempt locks are never stored.
type SessionStore interface {
	SaveSession(ctx context.Context, session models.LiveSession) error
	SaveQueueItems(ctx context.Context, items []models.QueueItem) error
	SaveVote(ctx context.Context, sessionID, attemptID string, vote models.JudgeVote) error
	LoadSession(ctx context.Context, id string) (models.LiveSession, error)
	ListQueueItems(ctx context.Context, sessionID string) ([]models.QueueItem, error)
	ListVotes(ctx context.Context, sessionID, attemptID string) ([]models.JudgeVote, error)
	ListSessions(ctx context.Context) ([]models.LiveSession, error)
}

// MetricsRecorder receives operational counters from the engine.
type MetricsRecorder interface {
	ClaimContention(sessionID string)
	LockExpired(sessionID string)
	AttemptDecided(sessionID string, verdict models.Verdict, latency time.Duration)
}

// Archiver stores the final record of a completed session.
type Archiver interface {
	ArchiveSession(ctx context.Context, archive models.SessionArchive) error
}

// ------------------- no-op implementations -------------------

type nopPublisher struct{}

func (nopPublisher) Publish(models.Event) {}

type nopMetrics struct{}

func (nopMetrics) ClaimContention(string)                               {}
func (nopMetrics) LockExpired(string)                                   {}
func (nopMetrics) AttemptDecided(string, models.Verdict, time.Duration) {}

type nopArchiver struct{}

func (nopArchiver) ArchiveSession(context.Context, models.SessionArchive) error { return nil }
