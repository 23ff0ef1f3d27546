// Package session keeps the signed-in state for one session key and keeps it
// in step with auth events published by the auth service.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/identity-service/internal/events"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
	"github.com/SAP-F-2025/identity-service/internal/services"
)

// State is a snapshot of the session. Values are copies; mutating them does
// not affect the Context.
type State struct {
	User    *models.User           `json:"user"`
	Session *models.Session        `json:"session,omitempty"`
	Loading bool                   `json:"loading"`
	IsAdmin bool                   `json:"is_admin"`
	Event   models.AuthChangeEvent `json:"event,omitempty"`
}

func (s State) SignedIn() bool {
	return s.Session != nil && s.User != nil
}

func (s State) clone() State {
	s.User = s.User.Clone()
	s.Session = s.Session.Clone()
	return s
}

// Listener is called with every new state, in order, from the Context's
// dispatch goroutine.
type Listener func(State)

// Context owns the state for one session key. All writes go through apply.
type Context struct {
	auth       services.AuthService
	subscriber message.Subscriber
	logger     *slog.Logger

	mu        sync.RWMutex
	state     State
	pending   []State
	listeners map[uint64]Listener
	nextID    uint64
	started   bool
	closed    bool

	wake      chan struct{}
	done      chan struct{}
	stopSub   func()
	closeOnce sync.Once
}

// New creates a Context bound to auth.ForSession(sessionKey). subscriber may
// be nil, in which case only the Context's own mutators change state.
func New(auth services.AuthService, subscriber message.Subscriber, sessionKey string, logger *slog.Logger) *Context {
	c := &Context{
		auth:       auth.ForSession(sessionKey),
		subscriber: subscriber,
		logger:     logger.With("component", "session_context"),
		state:      State{Loading: true},
		listeners:  make(map[uint64]Listener),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Start subscribes to auth events and loads the initial state. It may be
// called once.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("session context already started")
	}
	c.started = true
	c.mu.Unlock()

	if c.subscriber != nil {
		stop, err := events.SubscribeAuthState(context.WithoutCancel(ctx), c.subscriber, c.auth.SessionKey(), c.handleAuthChange, c.logger)
		if err != nil {
			c.apply(func(s *State) { s.Loading = false })
			return err
		}
		c.mu.Lock()
		c.stopSub = stop
		c.mu.Unlock()
	}

	return c.reload(ctx, models.AuthEventInitialSession)
}

// State returns the current snapshot.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe registers listener and returns a function that removes it.
func (c *Context) Subscribe(listener Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Close stops event delivery and listener dispatch. It is safe to call more
// than once.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		stop := c.stopSub
		c.stopSub = nil
		c.closed = true
		c.pending = nil
		c.mu.Unlock()

		if stop != nil {
			stop()
		}
		close(c.done)
	})
}

// ===== MUTATORS =====

func (c *Context) SignIn(ctx context.Context, req *services.SignInRequest) (*services.AuthResult, error) {
	result, err := c.auth.SignIn(ctx, req)
	if err != nil {
		return nil, err
	}
	c.set(models.AuthEventSignedIn, result.User, result.Session)
	return result, nil
}

func (c *Context) SignUp(ctx context.Context, req *services.SignUpRequest) (*services.AuthResult, error) {
	result, err := c.auth.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		c.set(models.AuthEventSignedIn, result.User, result.Session)
	}
	return result, nil
}

func (c *Context) SignOut(ctx context.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		// The stored session is gone even when the provider call failed.
		if reloadErr := c.reload(ctx, models.AuthEventSignedOut); reloadErr != nil {
			c.logger.Error("Failed to reload session after sign out error", "error", reloadErr)
		}
		return err
	}
	c.set(models.AuthEventSignedOut, nil, nil)
	return nil
}

func (c *Context) UpdateProfile(ctx context.Context, req *services.UpdateProfileRequest) (*models.Profile, error) {
	profile, err := c.auth.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	c.apply(func(s *State) {
		if s.User != nil {
			s.User.Profile = profile.Clone()
			s.IsAdmin = s.User.IsAdmin()
		}
		s.Event = models.AuthEventUserUpdated
	})
	return profile, nil
}

func (c *Context) ResetPassword(ctx context.Context, req *services.ResetPasswordRequest) error {
	return c.auth.ResetPassword(ctx, req)
}

func (c *Context) UpdatePassword(ctx context.Context, req *services.UpdatePasswordRequest) (*models.User, error) {
	user, err := c.auth.UpdatePassword(ctx, req)
	if err != nil {
		return nil, err
	}
	c.apply(func(s *State) {
		s.User = user.Clone()
		s.IsAdmin = s.User.IsAdmin()
		s.Event = models.AuthEventUserUpdated
	})
	return user, nil
}

// Refresh re-reads the session and user from the auth service.
func (c *Context) Refresh(ctx context.Context) error {
	return c.reload(ctx, "")
}

// ===== INTERNALS =====

// handleAuthChange resyncs from the store rather than trusting the event's
// payload, since bus delivery order is not guaranteed.
func (c *Context) handleAuthChange(ctx context.Context, change *events.AuthStateChange) {
	c.logger.Debug("Auth event received", "event", change.Event)
	if err := c.reload(ctx, change.Event); err != nil {
		c.logger.Error("Failed to resync session", "event", change.Event, "error", err)
	}
}

func (c *Context) reload(ctx context.Context, event models.AuthChangeEvent) error {
	session, err := c.auth.GetCurrentSession(ctx)
	if err != nil {
		c.apply(func(s *State) { s.Loading = false })
		return err
	}

	var user *models.User
	if session != nil {
		user, err = c.auth.GetCurrentUser(ctx)
		if err != nil {
			if errors.Is(err, services.ErrSessionExpired) || errors.Is(err, repositories.ErrSessionInvalid) {
				c.logger.Info("Session rejected by provider, signing out", "error", err)
				c.set(models.AuthEventSignedOut, nil, nil)
				return nil
			}
			c.apply(func(s *State) { s.Loading = false })
			return err
		}
		// GetCurrentUser may have refreshed the token.
		if latest, latestErr := c.auth.GetCurrentSession(ctx); latestErr == nil {
			session = latest
		}
	}

	if event == "" {
		event = c.State().Event
	}
	c.set(event, user, session)
	return nil
}

func (c *Context) set(event models.AuthChangeEvent, user *models.User, session *models.Session) {
	c.apply(func(s *State) {
		if session == nil || user == nil {
			s.User = nil
			s.Session = nil
		} else {
			s.User = user.Clone()
			s.Session = session.Clone()
		}
		s.IsAdmin = s.User.IsAdmin()
		s.Loading = false
		s.Event = event
	})
}

// apply is the only writer of c.state. The new snapshot is queued for the
// dispatch goroutine so listeners run outside the lock, in apply order.
// Once closed, state still changes but nothing is queued.
func (c *Context) apply(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, c.state.clone())
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Context) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		c.mu.Lock()
		pending := c.pending
		c.pending = nil
		ids := make([]uint64, 0, len(c.listeners))
		for id := range c.listeners {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		listeners := make([]Listener, 0, len(ids))
		for _, id := range ids {
			listeners = append(listeners, c.listeners[id])
		}
		c.mu.Unlock()

		for _, state := range pending {
			for _, listener := range listeners {
				listener(state.clone())
			}
		}
	}
}
