package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventPublisher publishes envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

// WatermillPublisher adapts a watermill publisher (in-process channel or
// Kafka) to EventPublisher.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewWatermillPublisher(publisher message.Publisher, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, logger: logger}
}

func (p *WatermillPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("Event published", "topic", topic, "event_type", event.Type, "event_id", event.ID)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// AuditPublisher forwards redacted auth events to a fixed topic, typically
// on Kafka. Tokens never leave the process.
type AuditPublisher struct {
	next  EventPublisher
	topic string
}

func NewAuditPublisher(next EventPublisher, topic string) *AuditPublisher {
	return &AuditPublisher{next: next, topic: topic}
}

func (p *AuditPublisher) Publish(ctx context.Context, _ string, event *Event) error {
	audited := *event
	switch data := event.Data.(type) {
	case AuthStateChange:
		audited.Data = data.Redacted()
	case *AuthStateChange:
		audited.Data = data.Redacted()
	}
	return p.next.Publish(ctx, p.topic, &audited)
}

func (p *AuditPublisher) Close() error {
	return p.next.Close()
}

// MultiPublisher fans an event out to every publisher.
type MultiPublisher struct {
	publishers []EventPublisher
}

func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (p *MultiPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	var errs []error
	for _, publisher := range p.publishers {
		if err := publisher.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MultiPublisher) Close() error {
	var errs []error
	for _, publisher := range p.publishers {
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
