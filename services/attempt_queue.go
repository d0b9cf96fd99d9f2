// Package services: services/attempt_queue.go
package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// AttemptQueue keeps the lift order of every session. Each session has its own
// mutex, so operations on different sessions never contend.
type AttemptQueue struct {
	mu       sync.Mutex
	sessions map[string]*sessionQueue
}

// sessionQueue holds items sorted by Order.
type sessionQueue struct {
	mu    sync.Mutex
	items []*models.QueueItem
	byID  map[string]*models.QueueItem
}

// NewAttemptQueue creates an empty queue registry.
func NewAttemptQueue() *AttemptQueue {
	return &AttemptQueue{sessions: make(map[string]*sessionQueue)}
}

// session returns the queue for sessionID, creating it when create is set.
func (q *AttemptQueue) session(sessionID string, create bool) *sessionQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.sessions[sessionID]
	if !ok && create {
		sq = &sessionQueue{byID: make(map[string]*models.QueueItem)}
		q.sessions[sessionID] = sq
	}
	return sq
}

// Enqueue inserts item as pending, keeping the order invariant.
func (q *AttemptQueue) Enqueue(item models.QueueItem) (models.QueueItem, error) {
	if item.SessionID == "" {
		return models.QueueItem{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if item.AttemptNumber < 1 {
		return models.QueueItem{}, fmt.Errorf("%w: attempt number must be at least 1", ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Status = models.QueuePending

	sq := q.session(item.SessionID, true)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if _, exists := sq.byID[item.ID]; exists {
		return models.QueueItem{}, fmt.Errorf("%w: item %s already queued", ErrInvalidInput, item.ID)
	}
	for _, it := range sq.items {
		if it.Order == item.Order {
			return models.QueueItem{}, fmt.Errorf("%w: order %d", ErrDuplicateOrder, item.Order)
		}
	}

	stored := item
	sq.items = append(sq.items, &stored)
	sq.byID[stored.ID] = &stored
	sq.sort()

	logger.Debug.Printf("[AttemptQueue.Enqueue] session=%s item=%s order=%d", item.SessionID, item.ID, item.Order)
	return stored, nil
}

// Reorder reassigns order values atomically. Every affected item must be pending.
func (q *AttemptQueue) Reorder(sessionID string, assignment map[string]int) error {
	sq := q.session(sessionID, false)
	if sq == nil {
		return fmt.Errorf("%w: session %s has no queue", ErrSessionNotFound, sessionID)
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()

	for id := range assignment {
		it, ok := sq.byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
		}
		if it.Status != models.QueuePending {
			return fmt.Errorf("%w: item %s is %s", ErrInvalidReorder, id, it.Status)
		}
	}

	seen := make(map[int]string, len(sq.items))
	for _, it := range sq.items {
		order := it.Order
		if o, ok := assignment[it.ID]; ok {
			order = o
		}
		if other, dup := seen[order]; dup {
			return fmt.Errorf("%w: order %d shared by %s and %s", ErrDuplicateOrder, order, other, it.ID)
		}
		seen[order] = it.ID
	}

	for id, order := range assignment {
		sq.byID[id].Order = order
	}
	sq.sort()
	logger.Info.Printf("[AttemptQueue.Reorder] session=%s reassigned %d items", sessionID, len(assignment))
	return nil
}

// PeekNext returns the current item, or the lowest-order pending item when
// nothing is in progress. It never mutates the queue.
func (q *AttemptQueue) PeekNext(sessionID string) (models.QueueItem, bool) {
	sq := q.session(sessionID, false)
	if sq == nil {
		return models.QueueItem{}, false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if it := sq.next(); it != nil {
		return *it, true
	}
	return models.QueueItem{}, false
}

// Advance finalizes the current item and promotes the next pending one.
// The returned item is the new current attempt, if any.
func (q *AttemptQueue) Advance(sessionID, completedItemID string, outcome models.Verdict) (*models.QueueItem, error) {
	var final models.QueueStatus
	switch outcome {
	case models.VerdictPassed:
		final = models.QueueCompleted
	case models.VerdictFailed:
		final = models.QueueFailed
	default:
		return nil, fmt.Errorf("%w: outcome %q", ErrInvalidInput, outcome)
	}

	sq := q.session(sessionID, false)
	if sq == nil {
		return nil, fmt.Errorf("%w: session %s has no queue", ErrSessionNotFound, sessionID)
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()

	it, ok := sq.byID[completedItemID]
	if !ok || it.Status != models.QueueCurrent {
		return nil, fmt.Errorf("%w: %s", ErrNotCurrent, completedItemID)
	}
	it.Status = final

	next := sq.promote()
	if next == nil {
		logger.Info.Printf("[AttemptQueue.Advance] session=%s item=%s -> %s; queue exhausted", sessionID, completedItemID, final)
		return nil, nil
	}
	logger.Info.Printf("[AttemptQueue.Advance] session=%s item=%s -> %s; next=%s", sessionID, completedItemID, final, next.ID)
	cp := *next
	return &cp, nil
}

// ensureCurrent returns the current item, promoting the head pending item when
// nothing is current yet.
func (q *AttemptQueue) ensureCurrent(sessionID string) (models.QueueItem, error) {
	sq := q.session(sessionID, false)
	if sq == nil {
		return models.QueueItem{}, ErrNoAttemptsAvailable
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if cur := sq.current(); cur != nil {
		return *cur, nil
	}
	if next := sq.promote(); next != nil {
		return *next, nil
	}
	return models.QueueItem{}, ErrNoAttemptsAvailable
}

// requeueCurrent puts the current item back to pending and returns it. Used
// when a session ends with an attempt still in progress.
func (q *AttemptQueue) requeueCurrent(sessionID string) (models.QueueItem, bool) {
	sq := q.session(sessionID, false)
	if sq == nil {
		return models.QueueItem{}, false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	cur := sq.current()
	if cur == nil {
		return models.QueueItem{}, false
	}
	cur.Status = models.QueuePending
	logger.Info.Printf("[AttemptQueue.requeueCurrent] session=%s item=%s back to pending", sessionID, cur.ID)
	return *cur, true
}

// Get returns a copy of one item.
func (q *AttemptQueue) Get(sessionID, itemID string) (models.QueueItem, error) {
	sq := q.session(sessionID, false)
	if sq == nil {
		return models.QueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, itemID)
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	it, ok := sq.byID[itemID]
	if !ok {
		return models.QueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, itemID)
	}
	return *it, nil
}

// Items returns copies of every item in lift order.
func (q *AttemptQueue) Items(sessionID string) []models.QueueItem {
	sq := q.session(sessionID, false)
	if sq == nil {
		return nil
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	out := make([]models.QueueItem, len(sq.items))
	for i, it := range sq.items {
		out[i] = *it
	}
	return out
}

// Remaining counts items that are pending or current.
func (q *AttemptQueue) Remaining(sessionID string) int {
	sq := q.session(sessionID, false)
	if sq == nil {
		return 0
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	n := 0
	for _, it := range sq.items {
		if !it.Status.Final() {
			n++
		}
	}
	return n
}

// restore loads items with their persisted status. Used when rebuilding a
// session from storage.
func (q *AttemptQueue) restore(sessionID string, items []models.QueueItem) {
	sq := q.session(sessionID, true)
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.items = sq.items[:0]
	sq.byID = make(map[string]*models.QueueItem, len(items))
	for _, it := range items {
		stored := it
		sq.items = append(sq.items, &stored)
		sq.byID[stored.ID] = &stored
	}
	sq.sort()
}

// ------------------- sessionQueue helpers (caller holds mu) -------------------

func (sq *sessionQueue) sort() {
	sort.Slice(sq.items, func(i, j int) bool { return sq.items[i].Order < sq.items[j].Order })
}

func (sq *sessionQueue) current() *models.QueueItem {
	for _, it := range sq.items {
		if it.Status == models.QueueCurrent {
			return it
		}
	}
	return nil
}

func (sq *sessionQueue) next() *models.QueueItem {
	if cur := sq.current(); cur != nil {
		return cur
	}
	for _, it := range sq.items {
		if it.Status == models.QueuePending {
			return it
		}
	}
	return nil
}

// promote marks the lowest-order pending item current. Only called when no
// item is current.
func (sq *sessionQueue) promote() *models.QueueItem {
	for _, it := range sq.items {
		if it.Status == models.QueuePending {
			it.Status = models.QueueCurrent
			return it
		}
	}
	return nil
}

// remove forgets a session's queue entirely.
func (q *AttemptQueue) remove(sessionID string) {
	q.mu.Lock()
	delete(q.sessions, sessionID)
	q.mu.Unlock()
}
