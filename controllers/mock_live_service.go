package controllers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go-lift-control/models"
	"go-lift-control/services"
)

var _ LiveService = (*MockLiveService)(nil)

// MockLiveService implements LiveService for handler tests.
type MockLiveService struct {
	mock.Mock
}

func (m *MockLiveService) CreateSession(ctx context.Context, actor models.Actor, req services.CreateSessionRequest) (models.LiveSession, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(models.LiveSession), args.Error(1)
}

func (m *MockLiveService) ChangeSessionStatus(ctx context.Context, sessionID string, actor models.Actor, target models.SessionStatus) (models.LiveSession, error) {
	args := m.Called(ctx, sessionID, actor, target)
	return args.Get(0).(models.LiveSession), args.Error(1)
}

func (m *MockLiveService) ClaimNextAttempt(ctx context.Context, sessionID string, actor models.Actor) (services.ClaimResult, error) {
	args := m.Called(ctx, sessionID, actor)
	return args.Get(0).(services.ClaimResult), args.Error(1)
}

func (m *MockLiveService) ReleaseAttempt(ctx context.Context, sessionID, attemptID string, actor models.Actor) (*models.QueueItem, error) {
	args := m.Called(ctx, sessionID, attemptID, actor)
	item, _ := args.Get(0).(*models.QueueItem)
	return item, args.Error(1)
}

func (m *MockLiveService) SubmitVote(ctx context.Context, sessionID, attemptID string, actor models.Actor, decision models.Decision, notes string) (services.VoteResult, error) {
	args := m.Called(ctx, sessionID, attemptID, actor, decision, notes)
	return args.Get(0).(services.VoteResult), args.Error(1)
}

func (m *MockLiveService) AdvanceQueue(ctx context.Context, sessionID, attemptID string, actor models.Actor, verdict models.Verdict) (models.AttemptDecision, error) {
	args := m.Called(ctx, sessionID, attemptID, actor, verdict)
	return args.Get(0).(models.AttemptDecision), args.Error(1)
}

func (m *MockLiveService) StartNext(ctx context.Context, sessionID string, actor models.Actor) (models.QueueItem, error) {
	args := m.Called(ctx, sessionID, actor)
	return args.Get(0).(models.QueueItem), args.Error(1)
}

func (m *MockLiveService) GetCurrentAttempt(sessionID string, actor models.Actor) (services.CurrentAttemptView, error) {
	args := m.Called(sessionID, actor)
	return args.Get(0).(services.CurrentAttemptView), args.Error(1)
}

func (m *MockLiveService) Session(sessionID string) (models.LiveSession, error) {
	args := m.Called(sessionID)
	return args.Get(0).(models.LiveSession), args.Error(1)
}

func (m *MockLiveService) Sessions() []models.LiveSession {
	args := m.Called()
	return args.Get(0).([]models.LiveSession)
}

func (m *MockLiveService) Queue(sessionID string) ([]models.QueueItem, error) {
	args := m.Called(sessionID)
	items, _ := args.Get(0).([]models.QueueItem)
	return items, args.Error(1)
}

func (m *MockLiveService) EnqueueAttempt(ctx context.Context, sessionID string, actor models.Actor, item models.QueueItem) (models.QueueItem, error) {
	args := m.Called(ctx, sessionID, actor, item)
	return args.Get(0).(models.QueueItem), args.Error(1)
}

func (m *MockLiveService) ReorderQueue(ctx context.Context, sessionID string, actor models.Actor, assignment map[string]int) ([]models.QueueItem, error) {
	args := m.Called(ctx, sessionID, actor, assignment)
	items, _ := args.Get(0).([]models.QueueItem)
	return items, args.Error(1)
}

func (m *MockLiveService) StartTimer(ctx context.Context, sessionID string, actor models.Actor, duration time.Duration) (models.TimerState, error) {
	args := m.Called(ctx, sessionID, actor, duration)
	return args.Get(0).(models.TimerState), args.Error(1)
}

func (m *MockLiveService) StopTimer(ctx context.Context, sessionID string, actor models.Actor) (models.TimerState, error) {
	args := m.Called(ctx, sessionID, actor)
	return args.Get(0).(models.TimerState), args.Error(1)
}

func (m *MockLiveService) ComputeScoring(total, bodyWeight *float64, gender models.Gender) models.ScoringResult {
	args := m.Called(total, bodyWeight, gender)
	return args.Get(0).(models.ScoringResult)
}

func (m *MockLiveService) Standings(sessionID string, athletes []models.AthleteProfile) ([]models.Standing, error) {
	args := m.Called(sessionID, athletes)
	standings, _ := args.Get(0).([]models.Standing)
	return standings, args.Error(1)
}

func (m *MockLiveService) SweepExpiredLocks(ctx context.Context) []models.AttemptLock {
	args := m.Called(ctx)
	locks, _ := args.Get(0).([]models.AttemptLock)
	return locks
}
