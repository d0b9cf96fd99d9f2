// file: storage/sql_store_test.go
package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/models"
	"go-lift-control/services"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSession(updated time.Time) models.LiveSession {
	return models.LiveSession{
		ID:                   "s1",
		CompetitionID:        "c1",
		Status:               models.SessionActive,
		CurrentDiscipline:    "bench",
		CurrentAttemptID:     "a",
		CurrentAthleteID:     "athlete-a",
		CurrentAttemptNumber: 2,
		CurrentRound:         2,
		TotalRounds:          3,
		Timer:                models.TimerState{Duration: time.Minute, Remaining: 42 * time.Second},
		Judges:               []string{"j1", "j2", "j3"},
		Settings: models.SessionSettings{
			AutoAdvance:   true,
			ShowResults:   true,
			TimeoutPolicy: models.TimeoutPause,
		},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		StartedAt: updated.Add(-30 * time.Minute),
	}
}

func TestSQLStore_SessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	want := sampleSession(now)
	require.NoError(t, s.SaveSession(ctx, want))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.EndedAt.IsZero())

	_, err = s.LoadSession(ctx, "missing")
	assert.True(t, errors.Is(err, services.ErrSessionNotFound))
}

func TestSQLStore_StaleSnapshotIsIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	newer := sampleSession(now)
	newer.Status = models.SessionPaused
	require.NoError(t, s.SaveSession(ctx, newer))

	older := sampleSession(now.Add(-time.Second))
	require.NoError(t, s.SaveSession(ctx, older))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, got.Status)

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLStore_QueueItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items := []models.QueueItem{
		{ID: "b", SessionID: "s1", AthleteID: "x", AthleteName: "X", Discipline: "squat", AttemptNumber: 1, RequestedWeight: 180.5, Order: 2, Status: models.QueuePending},
		{ID: "a", SessionID: "s1", AthleteID: "y", AthleteName: "Y", Discipline: "squat", AttemptNumber: 1, RequestedWeight: 150, Order: 1, Status: models.QueueCurrent},
		{ID: "a", SessionID: "s2", AthleteID: "z", AthleteName: "Z", Discipline: "squat", AttemptNumber: 1, RequestedWeight: 90, Order: 1, Status: models.QueuePending},
	}
	require.NoError(t, s.SaveQueueItems(ctx, items))

	got, err := s.ListQueueItems(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 180.5, got[1].RequestedWeight)

	items[1].Status = models.QueueCompleted
	require.NoError(t, s.SaveQueueItems(ctx, items[1:2]))
	got, err = s.ListQueueItems(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueCompleted, got[0].Status)
}

func TestSQLStore_VotesLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveVote(ctx, "s1", "a", models.JudgeVote{JudgeID: "j2", Decision: models.DecisionWhite, At: at}))
	require.NoError(t, s.SaveVote(ctx, "s1", "a", models.JudgeVote{JudgeID: "j1", Decision: models.DecisionWhite, At: at}))
	require.NoError(t, s.SaveVote(ctx, "s1", "a", models.JudgeVote{JudgeID: "j1", Decision: models.DecisionRed, At: at.Add(time.Second), Notes: "depth"}))

	votes, err := s.ListVotes(ctx, "s1", "a")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, "j1", votes[0].JudgeID)
	assert.Equal(t, models.DecisionRed, votes[0].Decision)
	assert.Equal(t, "depth", votes[0].Notes)
	assert.Equal(t, at.Add(time.Second), votes[0].At)
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpenSQLStore_Validation(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), DialectSQLite, " ")
	assert.Error(t, err)
	_, err = OpenSQLStore(context.Background(), Dialect("oracle"), "dsn")
	assert.EqualError(t, err, `unsupported dialect "oracle"`)
}

func TestSQLStore_RestoresEngine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	admin := models.Actor{ID: "admin", Role: models.RoleAdmin}

	e := services.NewLiveEngine(services.EngineDeps{Store: s})
	_, err := e.CreateSession(ctx, admin, services.CreateSessionRequest{
		ID:     "s1",
		Judges: []string{"j1"},
		Items: []models.QueueItem{
			{ID: "a", AthleteID: "x", AttemptNumber: 1, Order: 1},
			{ID: "b", AthleteID: "y", AttemptNumber: 1, Order: 2},
		},
	})
	require.NoError(t, err)
	_, err = e.ChangeSessionStatus(ctx, "s1", admin, models.SessionActive)
	require.NoError(t, err)

	restored := services.NewLiveEngine(services.EngineDeps{Store: s})
	require.NoError(t, restored.Restore(ctx))
	sess, err := restored.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, sess.Status)
	items, err := restored.Queue("s1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
