// Package timers drives the attempt clock of live sessions.
// File: timers/timer_manager.go
package timers

import (
	"context"
	"sync"
	"time"

	"go-lift-control/logger"
	"go-lift-control/models"
)

// Clock is the engine side of the attempt clock.
type Clock interface {
	TickTimer(ctx context.Context, sessionID string, elapsed time.Duration) (models.TimerState, error)
}

// TimerManager runs one ticker goroutine per session with a running clock.
type TimerManager struct {
	Clock          Clock
	TickerInterval time.Duration

	mu      sync.Mutex
	nextID  int
	running map[string]*runningTimer
}

type runningTimer struct {
	id     int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTimerManager creates a manager ticking every interval.
func NewTimerManager(clock Clock, interval time.Duration) *TimerManager {
	return &TimerManager{
		Clock:          clock,
		TickerInterval: interval,
		running:        make(map[string]*runningTimer),
	}
}

// Start begins ticking sessionID, replacing any ticker already running for it.
func (tm *TimerManager) Start(sessionID string) {
	tm.mu.Lock()
	if tm.running == nil {
		tm.running = make(map[string]*runningTimer)
	}
	if old, ok := tm.running[sessionID]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	tm.nextID++
	rt := &runningTimer{id: tm.nextID, cancel: cancel, done: make(chan struct{})}
	tm.running[sessionID] = rt
	tm.mu.Unlock()

	logger.Info.Printf("[TimerManager.Start] ticker %d started for session=%s", rt.id, sessionID)
	go tm.loop(ctx, sessionID, rt)
}

// Stop cancels the ticker of sessionID, if any.
func (tm *TimerManager) Stop(sessionID string) {
	tm.mu.Lock()
	rt, ok := tm.running[sessionID]
	if ok {
		delete(tm.running, sessionID)
	}
	tm.mu.Unlock()
	if ok {
		rt.cancel()
		<-rt.done
	}
}

// StopAll cancels every ticker and waits for them to exit.
func (tm *TimerManager) StopAll() {
	tm.mu.Lock()
	all := tm.running
	tm.running = make(map[string]*runningTimer)
	tm.mu.Unlock()
	for _, rt := range all {
		rt.cancel()
		<-rt.done
	}
}

// Active reports whether a ticker is running for sessionID.
func (tm *TimerManager) Active(sessionID string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.running[sessionID]
	return ok
}

func (tm *TimerManager) loop(ctx context.Context, sessionID string, rt *runningTimer) {
	defer close(rt.done)
	ticker := time.NewTicker(tm.interval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			state, err := tm.Clock.TickTimer(ctx, sessionID, elapsed)
			if err != nil {
				logger.Warn.Printf("[TimerManager] tick for session=%s failed: %v", sessionID, err)
				tm.forget(sessionID, rt.id)
				return
			}
			if !state.Running {
				logger.Debug.Printf("[TimerManager] clock of session=%s no longer running; ticker %d exits", sessionID, rt.id)
				tm.forget(sessionID, rt.id)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// forget removes the registry entry unless a newer ticker replaced it.
func (tm *TimerManager) forget(sessionID string, id int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if rt, ok := tm.running[sessionID]; ok && rt.id == id {
		delete(tm.running, sessionID)
	}
}

// interval returns the ticker interval (defaults to 1 second if unset).
func (tm *TimerManager) interval() time.Duration {
	if tm.TickerInterval > 0 {
		return tm.TickerInterval
	}
	return time.Second
}
