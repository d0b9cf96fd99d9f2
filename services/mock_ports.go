package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go-lift-control/models"
)

var (
	_ EventPublisher  = (*MockPublisher)(nil)
	_ MetricsRecorder = (*MockMetrics)(nil)
	_ Archiver        = (*MockArchiver)(nil)
)

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

// Publish (Mocked)
func (m *MockPublisher) Publish(event models.Event) {
	m.Called(event)
}

// Events returns the published events of type t in publish order.
func (m *MockPublisher) Events(t models.EventType) []models.Event {
	var out []models.Event
	for _, c := range m.Calls {
		if c.Method != "Publish" {
			continue
		}
		if ev, ok := c.Arguments.Get(0).(models.Event); ok && ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// MockMetrics is a MetricsRecorder for tests.
type MockMetrics struct {
	mock.Mock
}

// ClaimContention (Mocked)
func (m *MockMetrics) ClaimContention(sessionID string) {
	m.Called(sessionID)
}

// LockExpired (Mocked)
func (m *MockMetrics) LockExpired(sessionID string) {
	m.Called(sessionID)
}

// AttemptDecided (Mocked)
func (m *MockMetrics) AttemptDecided(sessionID string, verdict models.Verdict, latency time.Duration) {
	m.Called(sessionID, verdict, latency)
}

// MockArchiver is an Archiver for tests.
type MockArchiver struct {
	mock.Mock
}

// ArchiveSession (Mocked)
func (m *MockArchiver) ArchiveSession(ctx context.Context, archive models.SessionArchive) error {
	args := m.Called(ctx, archive)
	return args.Error(0)
}
