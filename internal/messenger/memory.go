package messenger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/tracking"
)

// Sent is one delivered message, retained by the in-memory messenger.
type Sent struct {
	Subscriber int64
	Text       string
	Actions    []tracking.Action
}

// Memory records messages instead of delivering them. It backs the ops API's
// outbox view and the test suites; a real chat transport implements Messenger
// the same way.
type Memory struct {
	mu   sync.Mutex
	sent []Sent
	log  *zap.Logger
}

// NewMemory builds an empty in-memory messenger.
func NewMemory(log *zap.Logger) *Memory {
	return &Memory{log: log}
}

// Send records the message.
func (m *Memory) Send(_ context.Context, subscriber int64, text string, actions []tracking.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{Subscriber: subscriber, Text: text, Actions: actions})
	m.log.Info("message delivered",
		zap.Int64("subscriber", subscriber),
		zap.Int("actions", len(actions)))
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *Memory) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}
