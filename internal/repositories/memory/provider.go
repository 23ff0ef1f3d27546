package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// Operation names accepted by Provider.SetError.
const (
	OpSignUp        = "signup"
	OpSignIn        = "signin"
	OpRefresh       = "refresh"
	OpSignOut       = "signout"
	OpGetUser       = "get_user"
	OpUpdateUser    = "update_user"
	OpRecover       = "recover"
	OpProfileGet    = "profile_get"
	OpProfileInsert = "profile_insert"
	OpProfileUpdate = "profile_update"
	OpProfileList   = "profile_list"
	OpPing          = "ping"
)

type account struct {
	user      *models.User
	password  string
	confirmed bool
}

// Provider is an in-process identity provider and profiles table. Profile
// calls apply the same row rules as the database policies, acting as the
// holder of the access token carried on the context. It satisfies
// repositories.Repository and backs tests and offline runs.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account // by email
	access   map[string]string   // access token -> user id
	refresh  map[string]string   // refresh token -> user id
	profiles map[string]*models.Profile
	errs     map[string]error
	sessions repositories.SessionStore
	seq      int

	now                 func() time.Time
	tokenTTL            time.Duration
	requireConfirmation bool
	profileTrigger      bool

	recoveries []string
}

func NewProvider() *Provider {
	return &Provider{
		accounts:       make(map[string]*account),
		access:         make(map[string]string),
		refresh:        make(map[string]string),
		profiles:       make(map[string]*models.Profile),
		errs:           make(map[string]error),
		sessions:       NewSessionMemory(),
		now:            time.Now,
		tokenTTL:       time.Hour,
		profileTrigger: true,
	}
}

// SetClock replaces the provider's time source.
func (p *Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *Provider) SetTokenTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenTTL = ttl
}

// RequireConfirmation makes signups return no session until ConfirmEmail.
func (p *Provider) RequireConfirmation(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requireConfirmation = on
}

// DisableProfileTrigger stops signups from creating profile rows.
func (p *Provider) DisableProfileTrigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileTrigger = false
}

// SetError makes every call to op fail with err until cleared with nil.
func (p *Provider) SetError(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

// CreateUser seeds a confirmed account together with its profile.
func (p *Provider) CreateUser(email, password string, role models.UserRole) *models.User {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.newAccount(email, password, map[string]interface{}{"role": string(role)})
	acct.confirmed = true
	p.insertProfile(&models.ProfileInsert{ID: acct.user.ID, Email: acct.user.Email, Role: role})
	return acct.user.Clone()
}

func (p *Provider) ConfirmEmail(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acct, ok := p.accounts[strings.ToLower(email)]; ok {
		acct.confirmed = true
	}
}

// DeleteProfile drops a row regardless of policies.
func (p *Provider) DeleteProfile(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.profiles, id)
}

// StoredProfile reads a row regardless of policies.
func (p *Provider) StoredProfile(id string) *models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles[id].Clone()
}

// RevokeAccessTokens invalidates every issued access token. Refresh tokens
// keep working.
func (p *Provider) RevokeAccessTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (p *Provider) RevokeRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh = make(map[string]string)
}

// Recoveries lists the addresses password recovery was requested for.
func (p *Provider) Recoveries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.recoveries))
	copy(out, p.recoveries)
	return out
}

// ===== repositories.Repository =====

func (p *Provider) Auth() repositories.AuthRepository       { return p }
func (p *Provider) Profile() repositories.ProfileRepository { return p }
func (p *Provider) Sessions() repositories.SessionStore     { return p.sessions }

func (p *Provider) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs[OpPing]
}

func (p *Provider) Close() error {
	return nil
}

// ===== repositories.AuthRepository =====

func (p *Provider) SignUp(ctx context.Context, params repositories.SignUpParams) (*models.Session, *models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpSignUp]; err != nil {
		return nil, nil, err
	}
	email := strings.ToLower(params.Email)
	if _, exists := p.accounts[email]; exists {
		return nil, nil, fmt.Errorf("user already registered: %w", repositories.ErrDuplicate)
	}

	acct := p.newAccount(email, params.Password, params.Data)
	acct.confirmed = !p.requireConfirmation

	if p.profileTrigger {
		insert := &models.ProfileInsert{
			ID:    acct.user.ID,
			Email: email,
			Role:  models.ParseRole(acct.user.MetadataString("role")),
		}
		if name := acct.user.MetadataString("full_name"); name != "" {
			insert.FullName = &name
		}
		p.insertProfile(insert)
	}

	if !acct.confirmed {
		return nil, acct.user.Clone(), nil
	}
	return p.issueSession(acct), acct.user.Clone(), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpSignIn]; err != nil {
		return nil, err
	}
	acct, ok := p.accounts[strings.ToLower(email)]
	if !ok || acct.password != password {
		return nil, fmt.Errorf("invalid login credentials: %w", repositories.ErrInvalidCredentials)
	}
	if !acct.confirmed {
		return nil, fmt.Errorf("email not confirmed: %w", repositories.ErrEmailNotConfirmed)
	}

	now := p.now().UTC()
	acct.user.LastSignInAt = &now
	return p.issueSession(acct), nil
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpRefresh]; err != nil {
		return nil, err
	}
	userID, ok := p.refresh[refreshToken]
	if !ok {
		return nil, fmt.Errorf("invalid refresh token: %w", repositories.ErrSessionInvalid)
	}
	delete(p.refresh, refreshToken)

	acct := p.accountByID(userID)
	if acct == nil {
		return nil, fmt.Errorf("user not found: %w", repositories.ErrSessionInvalid)
	}
	return p.issueSession(acct), nil
}

// SignOut revokes every token held by the user, like a global logout.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpSignOut]; err != nil {
		return err
	}
	userID, ok := p.access[accessToken]
	if !ok {
		return fmt.Errorf("invalid token: %w", repositories.ErrSessionInvalid)
	}
	for token, owner := range p.access {
		if owner == userID {
			delete(p.access, token)
		}
	}
	for token, owner := range p.refresh {
		if owner == userID {
			delete(p.refresh, token)
		}
	}
	return nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpGetUser]; err != nil {
		return nil, err
	}
	acct, err := p.accountByToken(accessToken)
	if err != nil {
		return nil, err
	}
	return acct.user.Clone(), nil
}

func (p *Provider) UpdateUser(ctx context.Context, accessToken string, attrs repositories.UserAttributes) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpUpdateUser]; err != nil {
		return nil, err
	}
	acct, err := p.accountByToken(accessToken)
	if err != nil {
		return nil, err
	}

	if attrs.Password != "" {
		acct.password = attrs.Password
	}
	if attrs.Email != "" && !strings.EqualFold(attrs.Email, acct.user.Email) {
		email := strings.ToLower(attrs.Email)
		if _, taken := p.accounts[email]; taken {
			return nil, fmt.Errorf("email already registered: %w", repositories.ErrDuplicate)
		}
		delete(p.accounts, acct.user.Email)
		acct.user.Email = email
		p.accounts[email] = acct
	}
	for key, value := range attrs.Data {
		acct.user.UserMetadata[key] = value
	}
	acct.user.UpdatedAt = p.now().UTC()
	return acct.user.Clone(), nil
}

// ResetPasswordForEmail records the request. Unknown addresses succeed
// silently so callers cannot enumerate accounts.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpRecover]; err != nil {
		return err
	}
	p.recoveries = append(p.recoveries, strings.ToLower(email))
	return nil
}

// ===== repositories.ProfileRepository =====

func (p *Provider) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpProfileGet]; err != nil {
		return nil, err
	}
	profile, ok := p.profiles[id]
	if !ok || !p.canSee(p.caller(ctx), id) {
		return nil, repositories.ErrNotFound
	}
	return profile.Clone(), nil
}

func (p *Provider) Insert(ctx context.Context, insert *models.ProfileInsert) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpProfileInsert]; err != nil {
		return err
	}
	if caller := p.caller(ctx); caller == "" || caller != insert.ID {
		return fmt.Errorf("insert profile %s: %w", insert.ID, repositories.ErrPermissionDenied)
	}
	p.insertProfile(insert)
	return nil
}

func (p *Provider) Update(ctx context.Context, id string, changes models.ProfileChanges) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpProfileUpdate]; err != nil {
		return nil, err
	}
	caller := p.caller(ctx)
	current, ok := p.profiles[id]
	if !ok || !p.canSee(caller, id) {
		return nil, repositories.ErrNoRowsAffected
	}
	if changes.Role != nil && *changes.Role != current.Role && !p.isAdmin(caller) {
		return nil, fmt.Errorf("update profile %s: %w", id, repositories.ErrPermissionDenied)
	}

	updated := current.Clone()
	if changes.FullName != nil {
		updated.FullName = changes.FullName
	}
	if changes.AvatarURL != nil {
		updated.AvatarURL = changes.AvatarURL
	}
	if changes.Role != nil {
		updated.Role = *changes.Role
	}
	updated.UpdatedAt = p.now().UTC()
	if floor := current.UpdatedAt.Add(time.Microsecond); updated.UpdatedAt.Before(floor) {
		updated.UpdatedAt = floor
	}

	p.profiles[id] = updated
	return updated.Clone(), nil
}

func (p *Provider) List(ctx context.Context, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.errs[OpProfileList]; err != nil {
		return nil, 0, err
	}
	caller := p.caller(ctx)
	query := strings.ToLower(strings.TrimSpace(filters.Query))

	var matched []*models.Profile
	for id, profile := range p.profiles {
		if !p.canSee(caller, id) {
			continue
		}
		if filters.Role != nil && profile.Role != *filters.Role {
			continue
		}
		if query != "" && !profileMatches(profile, query) {
			continue
		}
		matched = append(matched, profile.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Email < matched[j].Email
	})

	total := int64(len(matched))
	if filters.Offset >= len(matched) {
		return []*models.Profile{}, total, nil
	}
	matched = matched[filters.Offset:]
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

// ===== internals, called with mu held =====

func (p *Provider) newAccount(email, password string, data map[string]interface{}) *account {
	now := p.now().UTC()
	metadata := datatypes.JSONMap{}
	for key, value := range data {
		metadata[key] = value
	}
	acct := &account{
		user: &models.User{
			ID:           uuid.NewString(),
			Aud:          "authenticated",
			Role:         "authenticated",
			Email:        strings.ToLower(email),
			UserMetadata: metadata,
			AppMetadata:  datatypes.JSONMap{"provider": "email"},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		password: password,
	}
	p.accounts[acct.user.Email] = acct
	return acct
}

func (p *Provider) insertProfile(insert *models.ProfileInsert) {
	if _, exists := p.profiles[insert.ID]; exists {
		return
	}
	role := insert.Role
	if role == "" {
		role = models.RoleUser
	}
	now := p.now().UTC()
	p.profiles[insert.ID] = &models.Profile{
		ID:        insert.ID,
		Email:     insert.Email,
		FullName:  insert.FullName,
		AvatarURL: insert.AvatarURL,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Provider) issueSession(acct *account) *models.Session {
	p.seq++
	accessToken := fmt.Sprintf("access-%d-%s", p.seq, uuid.NewString())
	refreshToken := fmt.Sprintf("refresh-%d-%s", p.seq, uuid.NewString())
	p.access[accessToken] = acct.user.ID
	p.refresh[refreshToken] = acct.user.ID

	return &models.Session{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(p.tokenTTL.Seconds()),
		ExpiresAt:    p.now().Add(p.tokenTTL).Unix(),
		RefreshToken: refreshToken,
		User:         acct.user.Clone(),
	}
}

func (p *Provider) accountByID(id string) *account {
	for _, acct := range p.accounts {
		if acct.user.ID == id {
			return acct
		}
	}
	return nil
}

func (p *Provider) accountByToken(token string) (*account, error) {
	userID, ok := p.access[token]
	if !ok {
		return nil, fmt.Errorf("invalid JWT: %w", repositories.ErrSessionInvalid)
	}
	acct := p.accountByID(userID)
	if acct == nil {
		return nil, fmt.Errorf("user not found: %w", repositories.ErrSessionInvalid)
	}
	return acct, nil
}

// caller resolves auth.uid() for the token on ctx; "" means anonymous.
func (p *Provider) caller(ctx context.Context) string {
	return p.access[repositories.AccessTokenFromContext(ctx)]
}

func (p *Provider) isAdmin(userID string) bool {
	profile, ok := p.profiles[userID]
	return ok && profile.Role == models.RoleAdmin
}

func (p *Provider) canSee(caller, id string) bool {
	return caller != "" && (caller == id || p.isAdmin(caller))
}

func profileMatches(profile *models.Profile, query string) bool {
	if strings.Contains(strings.ToLower(profile.Email), query) {
		return true
	}
	return profile.FullName != nil && strings.Contains(strings.ToLower(*profile.FullName), query)
}
