package events

import (
	"context"
	"log/slog"
	"sync"
)

// MockEventPublisher records published events for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []*Event
	topics []string
	logger *slog.Logger
	err    error
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	m.topics = append(m.topics, topic)
	m.logger.Debug("Mock event published", "topic", topic, "event_type", event.Type)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// FailWith makes subsequent Publish calls return err.
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEventPublisher) GetPublishedEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]*Event, len(m.events))
	copy(events, m.events)
	return events
}

func (m *MockEventPublisher) GetTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, len(m.topics))
	copy(topics, m.topics)
	return topics
}

// AuthEvents returns the auth state changes published so far, in order.
func (m *MockEventPublisher) AuthEvents() []AuthStateChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changes []AuthStateChange
	for _, event := range m.events {
		switch data := event.Data.(type) {
		case AuthStateChange:
			changes = append(changes, data)
		case *AuthStateChange:
			changes = append(changes, *data)
		}
	}
	return changes
}

func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
	m.topics = nil
}
