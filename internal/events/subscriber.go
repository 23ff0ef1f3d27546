package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// AuthStateHandler receives changes for one session key.
type AuthStateHandler func(ctx context.Context, change *AuthStateChange)

// SubscribeAuthState delivers auth state changes for sessionKey to handler,
// one at a time, until the returned stop function is called or ctx ends.
// stop waits for an in-flight handler to return.
func SubscribeAuthState(ctx context.Context, subscriber message.Subscriber, sessionKey string, handler AuthStateHandler, logger *slog.Logger) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	messages, err := subscriber.Subscribe(subCtx, TopicAuthStateChanged)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", TopicAuthStateChanged, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				_, change, err := DecodeAuthStateChange(msg.Payload)
				if err != nil {
					logger.Error("Dropping malformed auth event", "message_id", msg.UUID, "error", err)
					msg.Ack()
					continue
				}
				if change.SessionKey == sessionKey {
					handler(subCtx, change)
				}
				msg.Ack()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
