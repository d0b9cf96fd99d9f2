// Package services: services/lock_manager.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// DefaultLease is how long a claim stays valid without being refreshed.
const DefaultLease = 3 * time.Minute

// ClaimResult describes a successful claim.
type ClaimResult struct {
	Attempt        models.QueueItem   `json:"attempt"`
	Lock           models.AttemptLock `json:"lock"`
	Refreshed      bool               `json:"refreshed"`
	Reclaimed      bool               `json:"reclaimed"`
	PreviousHolder string             `json:"previousHolder,omitempty"`
}

// LockManager guarantees at most one live claimant per attempt. Every attempt
// has its own slot mutex; the registry mutex only guards slot lookup, so
// unrelated attempts never wait on each other. Item ids are only unique within
// a session, so slots are keyed by both.
type LockManager struct {
	queue *AttemptQueue
	lease time.Duration
	now   func() time.Time

	mu    sync.Mutex
	slots map[slotKey]*lockSlot
}

type slotKey struct {
	sessionID string
	attemptID string
}

// lockSlot serializes read-decide-write on one attempt's lock. A dead slot has
// been removed from the registry and must not be used.
type lockSlot struct {
	mu   sync.Mutex
	lock *models.AttemptLock
	dead bool
}

// NewLockManager creates a lock manager over queue. A zero lease uses
// DefaultLease; a nil clock uses time.Now.
func NewLockManager(queue *AttemptQueue, lease time.Duration, now func() time.Time) *LockManager {
	if lease <= 0 {
		lease = DefaultLease
	}
	if now == nil {
		now = time.Now
	}
	return &LockManager{
		queue: queue,
		lease: lease,
		now:   now,
		slots: make(map[slotKey]*lockSlot),
	}
}

// Lease returns the configured lease duration.
func (lm *LockManager) Lease() time.Duration {
	return lm.lease
}

// Claim binds the session's current attempt to actorID.
func (lm *LockManager) Claim(sessionID, actorID string) (ClaimResult, error) {
	if actorID == "" {
		return ClaimResult{}, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}

	for {
		item, err := lm.queue.ensureCurrent(sessionID)
		if err != nil {
			return ClaimResult{}, err
		}

		key := slotKey{sessionID, item.ID}
		slot := lm.acquireSlot(key)

		// the attempt may have been decided between selection and locking
		fresh, err := lm.queue.Get(sessionID, item.ID)
		if err != nil || fresh.Status != models.QueueCurrent {
			if slot.lock == nil {
				lm.dropLocked(key, slot)
			}
			slot.mu.Unlock()
			continue
		}

		res, err := lm.claimLocked(slot, fresh, actorID)
		slot.mu.Unlock()
		return res, err
	}
}

// claimLocked decides the claim while the caller holds slot.mu.
func (lm *LockManager) claimLocked(slot *lockSlot, item models.QueueItem, actorID string) (ClaimResult, error) {
	now := lm.now()
	res := ClaimResult{Attempt: item}

	switch existing := slot.lock; {
	case existing == nil:
		slot.lock = lm.newLock(item, actorID, now)
		logger.Info.Printf("[LockManager.Claim] attempt=%s claimed by %s until %s", item.ID, actorID, slot.lock.ExpiresAt.Format(time.RFC3339))

	case existing.HolderID == actorID:
		existing.ExpiresAt = now.Add(lm.lease)
		res.Refreshed = true
		logger.Debug.Printf("[LockManager.Claim] attempt=%s lease refreshed for %s", item.ID, actorID)

	case existing.Expired(now):
		res.Reclaimed = true
		res.PreviousHolder = existing.HolderID
		slot.lock = lm.newLock(item, actorID, now)
		logger.Info.Printf("[LockManager.Claim] attempt=%s expired lease of %s reclaimed by %s", item.ID, existing.HolderID, actorID)

	default:
		logger.Info.Printf("[LockManager.Claim] contention: attempt=%s held by %s, %s turned away", item.ID, existing.HolderID, actorID)
		return ClaimResult{}, fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, existing.HolderID)
	}

	res.Lock = *slot.lock
	return res, nil
}

// Release removes the lock on attemptID in sessionID if actorID holds it. A
// missing lock is not an error and yields a nil attempt.
func (lm *LockManager) Release(sessionID, attemptID, actorID string) (*models.QueueItem, error) {
	key := slotKey{sessionID, attemptID}
	slot := lm.existingSlot(key)
	if slot == nil {
		return nil, nil
	}
	defer slot.mu.Unlock()

	if slot.lock == nil {
		return nil, nil
	}
	if slot.lock.HolderID != actorID {
		logger.Info.Printf("[LockManager.Release] contention: attempt=%s held by %s, release by %s refused", attemptID, slot.lock.HolderID, actorID)
		return nil, fmt.Errorf("%w: held by %s", ErrForbiddenRelease, slot.lock.HolderID)
	}

	lm.dropLocked(key, slot)
	logger.Info.Printf("[LockManager.Release] attempt=%s released by %s", attemptID, actorID)

	item, err := lm.queue.Get(sessionID, attemptID)
	if err != nil {
		return nil, nil
	}
	return &item, nil
}

// ForceRelease removes any lock on attemptID regardless of holder and returns
// it. Used when the attempt finishes or the session ends.
func (lm *LockManager) ForceRelease(sessionID, attemptID string) *models.AttemptLock {
	key := slotKey{sessionID, attemptID}
	slot := lm.existingSlot(key)
	if slot == nil {
		return nil
	}
	defer slot.mu.Unlock()

	if slot.lock == nil {
		lm.dropLocked(key, slot)
		return nil
	}
	released := *slot.lock
	lm.dropLocked(key, slot)
	return &released
}

// Holder returns the live lock on attemptID in sessionID, if any. Expired locks
// are reported as absent.
func (lm *LockManager) Holder(sessionID, attemptID string) (models.AttemptLock, bool) {
	slot := lm.existingSlot(slotKey{sessionID, attemptID})
	if slot == nil {
		return models.AttemptLock{}, false
	}
	defer slot.mu.Unlock()

	if slot.lock == nil || slot.lock.Expired(lm.now()) {
		return models.AttemptLock{}, false
	}
	return *slot.lock, true
}

// ExpireSweep drops every lock whose lease ended at or before now.
func (lm *LockManager) ExpireSweep(now time.Time) []models.AttemptLock {
	lm.mu.Lock()
	keys := make([]slotKey, 0, len(lm.slots))
	for key := range lm.slots {
		keys = append(keys, key)
	}
	lm.mu.Unlock()

	var expired []models.AttemptLock
	for _, key := range keys {
		slot := lm.existingSlot(key)
		if slot == nil {
			continue
		}
		if slot.lock != nil && slot.lock.Expired(now) {
			expired = append(expired, *slot.lock)
			logger.Info.Printf("[LockManager.ExpireSweep] session=%s attempt=%s lease of %s expired", key.sessionID, key.attemptID, slot.lock.HolderID)
			lm.dropLocked(key, slot)
		}
		slot.mu.Unlock()
	}
	return expired
}

func (lm *LockManager) newLock(item models.QueueItem, actorID string, now time.Time) *models.AttemptLock {
	return &models.AttemptLock{
		AttemptID:  item.ID,
		SessionID:  item.SessionID,
		HolderID:   actorID,
		LeaseID:    uuid.NewString(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(lm.lease),
	}
}

// ------------------- slot registry -------------------

// acquireSlot returns the live slot for key with its mutex held, creating it
// if needed.
func (lm *LockManager) acquireSlot(key slotKey) *lockSlot {
	for {
		lm.mu.Lock()
		slot, ok := lm.slots[key]
		if !ok {
			slot = &lockSlot{}
			lm.slots[key] = slot
		}
		lm.mu.Unlock()

		slot.mu.Lock()
		if !slot.dead {
			return slot
		}
		slot.mu.Unlock()
	}
}

// existingSlot is acquireSlot without creation; nil when no slot exists.
func (lm *LockManager) existingSlot(key slotKey) *lockSlot {
	for {
		lm.mu.Lock()
		slot, ok := lm.slots[key]
		lm.mu.Unlock()
		if !ok {
			return nil
		}

		slot.mu.Lock()
		if !slot.dead {
			return slot
		}
		slot.mu.Unlock()
	}
}

// dropLocked retires slot. The caller holds slot.mu.
func (lm *LockManager) dropLocked(key slotKey, slot *lockSlot) {
	slot.lock = nil
	slot.dead = true
	lm.mu.Lock()
	if lm.slots[key] == slot {
		delete(lm.slots, key)
	}
	lm.mu.Unlock()
}
