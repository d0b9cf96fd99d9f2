// file: services/attempt_queue_test.go
package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/models"
)

func queueItem(session, id string, order int) models.QueueItem {
	return models.QueueItem{
		ID:              id,
		SessionID:       session,
		AthleteID:       "athlete-" + id,
		AthleteName:     "Athlete " + id,
		Discipline:      "squat",
		AttemptNumber:   1,
		RequestedWeight: 100 + float64(order),
		Order:           order,
	}
}

func newTestQueue(t *testing.T, session string, ids ...string) *AttemptQueue {
	t.Helper()
	q := NewAttemptQueue()
	for i, id := range ids {
		_, err := q.Enqueue(queueItem(session, id, i+1))
		require.NoError(t, err)
	}
	return q
}

func countCurrent(items []models.QueueItem) int {
	n := 0
	for _, it := range items {
		if it.Status == models.QueueCurrent {
			n++
		}
	}
	return n
}

func TestEnqueue_KeepsOrderAndGeneratesIDs(t *testing.T) {
	q := NewAttemptQueue()
	_, err := q.Enqueue(queueItem("s1", "b", 20))
	require.NoError(t, err)
	stored, err := q.Enqueue(queueItem("s1", "", 10))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, models.QueuePending, stored.Status)

	items := q.Items("s1")
	require.Len(t, items, 2)
	assert.Equal(t, 10, items[0].Order)
	assert.Equal(t, 20, items[1].Order)
}

func TestEnqueue_DuplicateOrder(t *testing.T) {
	q := newTestQueue(t, "s1", "a")
	_, err := q.Enqueue(queueItem("s1", "b", 1))
	assert.True(t, errors.Is(err, ErrDuplicateOrder))
}

func TestEnqueue_RejectsBadInput(t *testing.T) {
	q := NewAttemptQueue()
	_, err := q.Enqueue(models.QueueItem{ID: "x", AttemptNumber: 1})
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = q.Enqueue(models.QueueItem{ID: "x", SessionID: "s1"})
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestPeekNext_IsIdempotent(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b")

	first, ok := q.PeekNext("s1")
	require.True(t, ok)
	second, ok := q.PeekNext("s1")
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, models.QueuePending, first.Status, "peek must not promote")
}

func TestPeekNext_EmptyAndUnknownSession(t *testing.T) {
	q := NewAttemptQueue()
	_, ok := q.PeekNext("missing")
	assert.False(t, ok)
}

func TestAdvance_PromotesNextPending(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b", "c")
	cur, err := q.ensureCurrent("s1")
	require.NoError(t, err)
	assert.Equal(t, "a", cur.ID)

	next, err := q.Advance("s1", "a", models.VerdictFailed)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)
	assert.Equal(t, models.QueueCurrent, next.Status)

	peek, ok := q.PeekNext("s1")
	require.True(t, ok)
	assert.Equal(t, "b", peek.ID)

	prev, err := q.Get("s1", "a")
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, prev.Status)
	assert.Equal(t, 1, countCurrent(q.Items("s1")))
}

func TestAdvance_NotCurrent(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b")
	_, err := q.ensureCurrent("s1")
	require.NoError(t, err)

	_, err = q.Advance("s1", "b", models.VerdictPassed)
	assert.True(t, errors.Is(err, ErrNotCurrent))

	_, err = q.Advance("s1", "a", models.VerdictPassed)
	require.NoError(t, err)
	_, err = q.Advance("s1", "a", models.VerdictFailed)
	assert.True(t, errors.Is(err, ErrNotCurrent), "finished items are immutable")

	item, _ := q.Get("s1", "a")
	assert.Equal(t, models.QueueCompleted, item.Status)
}

func TestAdvance_LastItemLeavesNoneCurrent(t *testing.T) {
	q := newTestQueue(t, "s1", "a")
	_, err := q.ensureCurrent("s1")
	require.NoError(t, err)

	next, err := q.Advance("s1", "a", models.VerdictPassed)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, 0, countCurrent(q.Items("s1")))
	assert.Equal(t, 0, q.Remaining("s1"))

	_, err = q.ensureCurrent("s1")
	assert.True(t, errors.Is(err, ErrNoAttemptsAvailable))
}

func TestAdvance_RejectsPendingOutcome(t *testing.T) {
	q := newTestQueue(t, "s1", "a")
	_, _ = q.ensureCurrent("s1")
	_, err := q.Advance("s1", "a", models.VerdictPending)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestReorder(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b", "c")
	require.NoError(t, q.Reorder("s1", map[string]int{"a": 3, "c": 1}))

	items := q.Items("s1")
	assert.Equal(t, []string{"c", "b", "a"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestReorder_RejectsFinishedOrCurrentItems(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b", "c")
	_, _ = q.ensureCurrent("s1")
	_, err := q.Advance("s1", "a", models.VerdictPassed)
	require.NoError(t, err)

	err = q.Reorder("s1", map[string]int{"a": 10})
	assert.True(t, errors.Is(err, ErrInvalidReorder))

	err = q.Reorder("s1", map[string]int{"b": 10})
	assert.True(t, errors.Is(err, ErrInvalidReorder), "current item is not pending")

	items := q.Items("s1")
	assert.Equal(t, 1, items[0].Order, "failed reorder leaves the queue untouched")
}

func TestReorder_DuplicateAndUnknown(t *testing.T) {
	q := newTestQueue(t, "s1", "a", "b")
	assert.True(t, errors.Is(q.Reorder("s1", map[string]int{"a": 2}), ErrDuplicateOrder))
	assert.True(t, errors.Is(q.Reorder("s1", map[string]int{"zzz": 5}), ErrQueueItemNotFound))
	assert.True(t, errors.Is(q.Reorder("nope", map[string]int{"a": 5}), ErrSessionNotFound))

	// swapping is a valid atomic reassignment
	require.NoError(t, q.Reorder("s1", map[string]int{"a": 2, "b": 1}))
	assert.Equal(t, "b", q.Items("s1")[0].ID)
}

func TestQueue_AtMostOneCurrentUnderConcurrency(t *testing.T) {
	q := NewAttemptQueue()
	for i := 1; i <= 50; i++ {
		_, err := q.Enqueue(queueItem("s1", fmt.Sprintf("i%02d", i), i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				cur, err := q.ensureCurrent("s1")
				if err != nil {
					return
				}
				_, _ = q.Advance("s1", cur.ID, models.VerdictPassed)
				assert.LessOrEqual(t, countCurrent(q.Items("s1")), 1)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, countCurrent(q.Items("s1")), 1)
}

func TestQueue_SessionsAreIndependent(t *testing.T) {
	q := NewAttemptQueue()
	_, err := q.Enqueue(queueItem("s1", "a", 1))
	require.NoError(t, err)
	_, err = q.Enqueue(queueItem("s2", "a", 1))
	require.NoError(t, err, "same order and id in another session is fine")

	_, _ = q.ensureCurrent("s1")
	peek, _ := q.PeekNext("s2")
	assert.Equal(t, models.QueuePending, peek.Status)
}
