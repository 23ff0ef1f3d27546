package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/identity-service/internal/events"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
	"github.com/SAP-F-2025/identity-service/internal/validator"
)

// DefaultSessionKey is used by single-user callers such as the CLI.
const DefaultSessionKey = "default"

type AuthServiceConfig struct {
	SessionKey          string
	RefreshMargin       time.Duration
	AllowAdminSignup    bool
	SignUpRedirectURL   string
	PasswordRedirectURL string
}

type authService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	rules     validator.RoleRules
	config    AuthServiceConfig
	now       func() time.Time
}

func NewAuthService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator, config AuthServiceConfig) AuthService {
	if config.SessionKey == "" {
		config.SessionKey = DefaultSessionKey
	}
	return &authService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: v,
		rules:     validator.RoleRules{AllowAdminSignup: config.AllowAdminSignup},
		config:    config,
		now:       time.Now,
	}
}

func (s *authService) ForSession(key string) AuthService {
	clone := *s
	clone.config.SessionKey = key
	clone.logger = s.logger.With("session_key", sessionKeyForLog(key))
	return &clone
}

func (s *authService) SessionKey() string {
	return s.config.SessionKey
}

// ===== SIGN UP / SIGN IN / SIGN OUT =====

func (s *authService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	role := models.RoleUser
	if req.Role != nil {
		role = *req.Role
	}
	if errs := s.rules.ValidateSignUpRole(role); len(errs) > 0 {
		return nil, NewPermissionError("", "", "account", "register as "+string(role), errs[0].Message)
	}

	email := normalizeEmail(req.Email)
	fullName := trimmedOrNil(req.FullName)

	metadata := map[string]interface{}{"role": string(role)}
	if fullName != nil {
		metadata["full_name"] = *fullName
	}

	s.logger.Info("Signing up user", "email", email, "role", role)

	session, user, err := s.repo.Auth().SignUp(ctx, repositories.SignUpParams{
		Email:      email,
		Password:   req.Password,
		Data:       metadata,
		RedirectTo: s.config.SignUpRedirectURL,
	})
	if err != nil {
		s.logger.Warn("Sign up rejected by provider", "email", email, "error", err)
		return nil, providerError("sign up", err)
	}

	token := ""
	if session != nil {
		token = session.AccessToken
	}

	// The signup trigger normally creates the row first; this insert only
	// covers databases without it. Failure here never fails the signup.
	insert := &models.ProfileInsert{
		ID:       user.ID,
		Email:    firstNonEmpty(user.Email, email),
		FullName: fullName,
		Role:     role,
	}
	if err := s.repo.Profile().Insert(repositories.WithAccessToken(ctx, token), insert); err != nil {
		s.logger.Error("Failed to create profile after sign up", "user_id", user.ID, "error", err)
	}

	if session == nil {
		s.logger.Info("Sign up awaiting email confirmation", "user_id", user.ID)
		return &AuthResult{User: user}, nil
	}

	if session.User == nil {
		session.User = user
	}
	if err := s.storeSession(ctx, session); err != nil {
		return nil, err
	}

	session.User.Profile = s.loadProfile(ctx, token, session.User.ID)
	s.publish(ctx, models.AuthEventSignedIn, session)

	s.logger.Info("User signed up", "user_id", session.User.ID)
	return &AuthResult{User: session.User, Session: session}, nil
}

func (s *authService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	session, err := s.repo.Auth().SignInWithPassword(ctx, email, req.Password)
	if err != nil {
		s.logger.Warn("Sign in failed", "email", email, "error", err)
		return nil, providerError("sign in", err)
	}

	if session.User == nil {
		user, err := s.repo.Auth().GetUser(ctx, session.AccessToken)
		if err != nil {
			return nil, providerError("load user", err)
		}
		session.User = user
	}

	if err := s.storeSession(ctx, session); err != nil {
		return nil, err
	}

	session.User.Profile = s.ensureProfile(ctx, session.AccessToken, session.User)
	s.publish(ctx, models.AuthEventSignedIn, session)

	s.logger.Info("User signed in", "user_id", session.User.ID)
	return &AuthResult{User: session.User, Session: session}, nil
}

// SignOut revokes the provider session and always clears the stored one.
// A provider failure is still returned after local state is gone.
func (s *authService) SignOut(ctx context.Context) error {
	session, err := s.repo.Sessions().Get(ctx, s.config.SessionKey)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil
	}

	var signOutErr error
	if err := s.repo.Auth().SignOut(ctx, session.AccessToken); err != nil {
		// An already-dead token means the provider side is signed out too.
		if !errors.Is(err, repositories.ErrSessionInvalid) {
			s.logger.Error("Provider sign out failed", "error", err)
			signOutErr = providerError("sign out", err)
		}
	}

	if err := s.repo.Sessions().Delete(ctx, s.config.SessionKey); err != nil {
		s.logger.Error("Failed to delete stored session", "error", err)
		signOutErr = errors.Join(signOutErr, err)
	}

	userID := ""
	if session.User != nil {
		userID = session.User.ID
	}
	s.publishChange(ctx, events.AuthStateChange{
		Event:      models.AuthEventSignedOut,
		SessionKey: s.config.SessionKey,
		UserID:     userID,
	})

	s.logger.Info("User signed out", "user_id", userID)
	return signOutErr
}

// ===== CURRENT SESSION / USER =====

func (s *authService) GetCurrentSession(ctx context.Context) (*models.Session, error) {
	session, err := s.repo.Sessions().Get(ctx, s.config.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if !session.ExpiresWithin(s.now(), s.config.RefreshMargin) {
		return session, nil
	}

	return s.refresh(ctx, session)
}

// dropSession forgets a stored session the provider no longer accepts.
func (s *authService) dropSession(ctx context.Context, session *models.Session) {
	s.logger.Info("Provider rejected stored session, clearing it")
	if err := s.repo.Sessions().Delete(ctx, s.config.SessionKey); err != nil {
		s.logger.Error("Failed to delete stored session", "error", err)
	}

	userID := ""
	if session.User != nil {
		userID = session.User.ID
	}
	s.publishChange(ctx, events.AuthStateChange{
		Event:      models.AuthEventSignedOut,
		SessionKey: s.config.SessionKey,
		UserID:     userID,
	})
}

func (s *authService) refresh(ctx context.Context, session *models.Session) (*models.Session, error) {
	refreshed, err := s.repo.Auth().RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionInvalid) {
			s.logger.Info("Refresh token rejected, clearing session", "error", err)
			if delErr := s.repo.Sessions().Delete(ctx, s.config.SessionKey); delErr != nil {
				s.logger.Error("Failed to delete stored session", "error", delErr)
			}
			s.publishChange(ctx, events.AuthStateChange{
				Event:      models.AuthEventSignedOut,
				SessionKey: s.config.SessionKey,
			})
			return nil, nil
		}
		return nil, providerError("refresh session", err)
	}

	if refreshed.User == nil {
		refreshed.User = session.User
	}
	if err := s.storeSession(ctx, refreshed); err != nil {
		return nil, err
	}
	s.publish(ctx, models.AuthEventTokenRefreshed, refreshed)

	s.logger.Debug("Session refreshed", "expires_at", refreshed.ExpiresAt)
	return refreshed, nil
}

func (s *authService) GetCurrentUser(ctx context.Context) (*models.User, error) {
	session, err := s.GetCurrentSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}

	user, err := s.repo.Auth().GetUser(ctx, session.AccessToken)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionInvalid) {
			s.dropSession(ctx, session)
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return nil, providerError("get user", err)
	}

	user.Profile = s.loadProfile(ctx, session.AccessToken, user.ID)
	return user, nil
}

// ===== PROFILE / PASSWORD =====

func (s *authService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, ErrNothingToUpdate
	}

	session, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	userID := session.User.ID

	if req.Role != nil {
		caller := s.loadProfile(ctx, session.AccessToken, userID)
		if !s.rules.CanChangeRole(caller, userID, *req.Role) {
			return nil, NewPermissionError(userID, userID, "profile", "change role", "only admins can change roles")
		}
	}

	profile, err := s.repo.Profile().Update(repositories.WithAccessToken(ctx, session.AccessToken), userID, s.changesFrom(req))
	if err != nil {
		if errors.Is(err, repositories.ErrNoRowsAffected) {
			return nil, ErrProfileNotFound
		}
		if errors.Is(err, repositories.ErrPermissionDenied) {
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.publish(ctx, models.AuthEventUserUpdated, session)

	s.logger.Info("Profile updated", "user_id", userID)
	return profile, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	redirectTo := req.RedirectTo
	if redirectTo == "" {
		redirectTo = s.config.PasswordRedirectURL
	}

	email := normalizeEmail(req.Email)
	if err := s.repo.Auth().ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		s.logger.Warn("Password reset request failed", "email", email, "error", err)
		return providerError("request password reset", err)
	}

	s.publishChange(ctx, events.AuthStateChange{
		Event:      models.AuthEventPasswordRecovery,
		SessionKey: s.config.SessionKey,
	})

	s.logger.Info("Password reset requested", "email", email)
	return nil
}

func (s *authService) UpdatePassword(ctx context.Context, req *UpdatePasswordRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Auth().UpdateUser(ctx, session.AccessToken, repositories.UserAttributes{Password: req.Password})
	if err != nil {
		return nil, providerError("update password", err)
	}

	user.Profile = s.loadProfile(ctx, session.AccessToken, user.ID)
	s.publish(ctx, models.AuthEventUserUpdated, session)

	s.logger.Info("Password updated", "user_id", user.ID)
	return user, nil
}

// ===== ROLES =====

func (s *authService) HasRole(ctx context.Context, role models.UserRole) (bool, error) {
	user, err := s.GetCurrentUser(ctx)
	if err != nil {
		return false, err
	}
	return user.HasRole(role), nil
}

func (s *authService) IsAdmin(ctx context.Context) (bool, error) {
	return s.HasRole(ctx, models.RoleAdmin)
}
