package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

const (
	// TopicAuthStateChanged carries AuthStateChange payloads.
	TopicAuthStateChanged = "auth.state_changed"

	EventSource  = "identity-service"
	EventVersion = "1.0"
)

// Event is the envelope for everything published on the bus.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AuthStateChange is published whenever the session stored under SessionKey
// changes. Session is nil after sign-out.
type AuthStateChange struct {
	Event      models.AuthChangeEvent `json:"event"`
	SessionKey string                 `json:"session_key"`
	UserID     string                 `json:"user_id,omitempty"`
	Session    *models.Session        `json:"session,omitempty"`
}

// Redacted drops the tokens, leaving only who and what.
func (c AuthStateChange) Redacted() AuthStateChange {
	redacted := c
	redacted.Session = nil
	return redacted
}

// NewAuthStateEvent wraps change in an envelope of type "auth.<event>".
func NewAuthStateEvent(change AuthStateChange) *Event {
	if change.UserID == "" && change.Session != nil && change.Session.User != nil {
		change.UserID = change.Session.User.ID
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      "auth." + strings.ToLower(string(change.Event)),
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      change,
	}
}

type rawEvent struct {
	Event
	Data json.RawMessage `json:"data"`
}

// DecodeAuthStateChange parses a payload produced by publishing an auth state event.
func DecodeAuthStateChange(payload []byte) (*Event, *AuthStateChange, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to decode event: %w", err)
	}

	var change AuthStateChange
	if err := json.Unmarshal(raw.Data, &change); err != nil {
		return nil, nil, fmt.Errorf("failed to decode auth state change: %w", err)
	}

	event := raw.Event
	event.Data = change
	return &event, &change, nil
}
