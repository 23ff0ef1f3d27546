package models

import "time"

// Session is the token bundle issued by the identity provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

func (s *Session) ExpiresTime() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the access token expires before now+margin.
// A session without an expiry never reports expired.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if s == nil || s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresTime())
}

// Normalize fills ExpiresAt from ExpiresIn for providers that only send the latter.
func (s *Session) Normalize(now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.User = s.User.Clone()
	return &clone
}

// Storable returns a copy with the profile detached from the user. Profiles
// are always read fresh from the table.
func (s *Session) Storable() *Session {
	clone := s.Clone()
	if clone != nil && clone.User != nil {
		clone.User.Profile = nil
	}
	return clone
}

type AuthChangeEvent string

const (
	AuthEventInitialSession   AuthChangeEvent = "INITIAL_SESSION"
	AuthEventSignedIn         AuthChangeEvent = "SIGNED_IN"
	AuthEventSignedOut        AuthChangeEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed   AuthChangeEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated      AuthChangeEvent = "USER_UPDATED"
	AuthEventPasswordRecovery AuthChangeEvent = "PASSWORD_RECOVERY"
)
