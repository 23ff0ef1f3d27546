package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testChange() AuthStateChange {
	return AuthStateChange{
		Event:      models.AuthEventSignedIn,
		SessionKey: "k1",
		Session: &models.Session{
			AccessToken:  "secret-access",
			RefreshToken: "secret-refresh",
			User:         &models.User{ID: "u1", Email: "a@x.com"},
		},
	}
}

func TestNewAuthStateEvent(t *testing.T) {
	event := NewAuthStateEvent(testChange())

	if event.Type != "auth.signed_in" {
		t.Errorf("unexpected type %q", event.Type)
	}
	if event.Source != EventSource || event.Version != EventVersion {
		t.Errorf("unexpected envelope %+v", event)
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Error("expected id and timestamp")
	}

	change, ok := event.Data.(AuthStateChange)
	if !ok {
		t.Fatalf("unexpected data type %T", event.Data)
	}
	if change.UserID != "u1" {
		t.Errorf("user id should default from the session, got %q", change.UserID)
	}
}

func TestDecodeAuthStateChange(t *testing.T) {
	payload, err := json.Marshal(NewAuthStateEvent(testChange()))
	if err != nil {
		t.Fatal(err)
	}

	event, change, err := DecodeAuthStateChange(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if event.Type != "auth.signed_in" {
		t.Errorf("unexpected type %q", event.Type)
	}
	if change.SessionKey != "k1" || change.Session.AccessToken != "secret-access" {
		t.Errorf("unexpected change %+v", change)
	}

	if _, _, err := DecodeAuthStateChange([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestAuditPublisher_RedactsTokens(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())
	audit := NewAuditPublisher(mock, "identity.audit")

	if err := audit.Publish(context.Background(), TopicAuthStateChanged, NewAuthStateEvent(testChange())); err != nil {
		t.Fatal(err)
	}

	if topics := mock.GetTopics(); len(topics) != 1 || topics[0] != "identity.audit" {
		t.Errorf("expected audit topic, got %v", topics)
	}

	changes := mock.AuthEvents()
	if len(changes) != 1 {
		t.Fatalf("expected one change, got %d", len(changes))
	}
	if changes[0].Session != nil {
		t.Error("audit events must not carry the session")
	}
	if changes[0].UserID != "u1" {
		t.Error("audit events should keep the user id")
	}
}

func TestMultiPublisher(t *testing.T) {
	ok := NewMockEventPublisher(testLogger())
	failing := NewMockEventPublisher(testLogger())
	failing.FailWith(errors.New("broker down"))

	multi := NewMultiPublisher(ok, failing)
	err := multi.Publish(context.Background(), TopicAuthStateChanged, NewAuthStateEvent(testChange()))
	if err == nil {
		t.Error("expected the failing publisher's error")
	}
	if len(ok.GetPublishedEvents()) != 1 {
		t.Error("healthy publishers still receive the event")
	}
}

func TestWatermillPublisher_Metadata(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer bus.Close()

	messages, err := bus.Subscribe(context.Background(), TopicAuthStateChanged)
	if err != nil {
		t.Fatal(err)
	}

	publisher := NewWatermillPublisher(bus, testLogger())
	event := NewAuthStateEvent(testChange())
	if err := publisher.Publish(context.Background(), TopicAuthStateChanged, event); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-messages:
		if msg.UUID != event.ID {
			t.Errorf("message id should match event id")
		}
		if msg.Metadata.Get("event_type") != "auth.signed_in" || msg.Metadata.Get("source") != EventSource {
			t.Errorf("unexpected metadata %v", msg.Metadata)
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSubscribeAuthState_FiltersBySessionKey(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	var mu sync.Mutex
	var received []AuthStateChange
	delivered := make(chan struct{}, 4)

	stop, err := SubscribeAuthState(context.Background(), bus, "k1", func(ctx context.Context, change *AuthStateChange) {
		mu.Lock()
		received = append(received, *change)
		mu.Unlock()
		delivered <- struct{}{}
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	publisher := NewWatermillPublisher(bus, testLogger())
	ctx := context.Background()

	other := testChange()
	other.SessionKey = "k2"
	publisher.Publish(ctx, TopicAuthStateChanged, NewAuthStateEvent(other))

	// Malformed payloads are acked and skipped.
	bus.Publish(TopicAuthStateChanged, message.NewMessage(watermill.NewUUID(), []byte("{")))

	mine := testChange()
	mine.Event = models.AuthEventSignedOut
	mine.Session = nil
	publisher.Publish(ctx, TopicAuthStateChanged, NewAuthStateEvent(mine))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event for k1 not delivered")
	}

	stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected exactly one change for k1, got %d", len(received))
	}
	if received[0].Event != models.AuthEventSignedOut {
		t.Errorf("unexpected event %q", received[0].Event)
	}
}

func TestSubscribeAuthState_StopIsSynchronous(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	stop, err := SubscribeAuthState(context.Background(), bus, "k1", func(context.Context, *AuthStateChange) {}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestNewPublisher_LocalOnly(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	publisher, err := NewPublisher(bus, nil, "identity.auth_events", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := publisher.(*WatermillPublisher); !ok {
		t.Errorf("without brokers only the local bus is used, got %T", publisher)
	}
}
