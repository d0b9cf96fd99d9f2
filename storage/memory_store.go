// File: storage/memory_store.go
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go-lift-control/models"
	"go-lift-control/services"
)

var _ services.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Used for development and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.LiveSession
	items    map[string]map[string]models.QueueItem
	votes    map[string]map[string]models.JudgeVote
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.LiveSession),
		items:    make(map[string]map[string]models.QueueItem),
		votes:    make(map[string]map[string]models.JudgeVote),
	}
}

// SaveSession stores ls unless a newer snapshot is already present.
func (m *MemoryStore) SaveSession(_ context.Context, ls models.LiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[ls.ID]; ok && prev.UpdatedAt.After(ls.UpdatedAt) {
		return nil
	}
	ls.Judges = append([]string(nil), ls.Judges...)
	m.sessions[ls.ID] = ls
	return nil
}

func (m *MemoryStore) SaveQueueItems(_ context.Context, items []models.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		byID := m.items[it.SessionID]
		if byID == nil {
			byID = make(map[string]models.QueueItem)
			m.items[it.SessionID] = byID
		}
		byID[it.ID] = it
	}
	return nil
}

func (m *MemoryStore) SaveVote(_ context.Context, sessionID, attemptID string, v models.JudgeVote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionID + "/" + attemptID
	byJudge := m.votes[key]
	if byJudge == nil {
		byJudge = make(map[string]models.JudgeVote)
		m.votes[key] = byJudge
	}
	byJudge[v.JudgeID] = v
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (models.LiveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.sessions[id]
	if !ok {
		return models.LiveSession{}, fmt.Errorf("%w: %s", services.ErrSessionNotFound, id)
	}
	return ls, nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]models.LiveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.LiveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		out = append(out, ls)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListQueueItems(_ context.Context, sessionID string) ([]models.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.QueueItem, 0, len(m.items[sessionID]))
	for _, it := range m.items[sessionID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) ListVotes(_ context.Context, sessionID, attemptID string) ([]models.JudgeVote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byJudge := m.votes[sessionID+"/"+attemptID]
	out := make([]models.JudgeVote, 0, len(byJudge))
	for _, v := range byJudge {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out, nil
}
