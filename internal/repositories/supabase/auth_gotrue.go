package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// AuthGoTrue implements repositories.AuthRepository on the gotrue-go SDK.
type AuthGoTrue struct {
	client *Client
	now    func() time.Time
}

func NewAuthGoTrue(client *Client) repositories.AuthRepository {
	return &AuthGoTrue{client: client, now: time.Now}
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}

func (a *AuthGoTrue) SignUp(ctx context.Context, params repositories.SignUpParams) (*models.Session, *models.User, error) {
	resp, err := a.client.auth(ctx, "", redirectQuery(params.RedirectTo)).Signup(types.SignupRequest{
		Email:    params.Email,
		Password: params.Password,
		Data:     params.Data,
	})
	if err != nil {
		return nil, nil, translateError(err)
	}

	// With autoconfirm the provider answers with a session; otherwise only
	// the user exists until the email is confirmed.
	if resp.Session.AccessToken != "" {
		session, err := a.session(resp.Session)
		if err != nil {
			return nil, nil, err
		}
		return session, session.User, nil
	}

	if resp.User.ID == uuid.Nil {
		return nil, nil, errors.New("signup response carried neither session nor user")
	}
	user, err := toUser(resp.User)
	if err != nil {
		return nil, nil, err
	}
	return nil, user, nil
}

func (a *AuthGoTrue) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return a.grant(ctx, types.TokenRequest{
		GrantType: grantTypePassword,
		Email:     email,
		Password:  password,
	})
}

func (a *AuthGoTrue) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "refresh token is empty"}
	}
	return a.grant(ctx, types.TokenRequest{
		GrantType:    grantTypeRefreshToken,
		RefreshToken: refreshToken,
	})
}

func (a *AuthGoTrue) grant(ctx context.Context, req types.TokenRequest) (*models.Session, error) {
	resp, err := a.client.auth(ctx, "", nil).Token(req)
	if err != nil {
		return nil, translateError(err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("token response carried no access token")
	}
	return a.session(resp.Session)
}

func (a *AuthGoTrue) SignOut(ctx context.Context, accessToken string) error {
	return translateError(a.client.auth(ctx, accessToken, nil).Logout())
}

func (a *AuthGoTrue) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	resp, err := a.client.auth(ctx, accessToken, nil).GetUser()
	if err != nil {
		return nil, translateError(err)
	}
	return toUser(resp.User)
}

func (a *AuthGoTrue) UpdateUser(ctx context.Context, accessToken string, attrs repositories.UserAttributes) (*models.User, error) {
	// UserAttributes already carries the wire names, so unset fields stay
	// unset on the request.
	var req types.UpdateUserRequest
	if err := convert(attrs, &req); err != nil {
		return nil, fmt.Errorf("failed to build update request: %w", err)
	}

	resp, err := a.client.auth(ctx, accessToken, nil).UpdateUser(req)
	if err != nil {
		return nil, translateError(err)
	}
	return toUser(resp.User)
}

func (a *AuthGoTrue) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	err := a.client.auth(ctx, "", redirectQuery(redirectTo)).Recover(types.RecoverRequest{Email: email})
	return translateError(err)
}

func (a *AuthGoTrue) session(src types.Session) (*models.Session, error) {
	var session models.Session
	if err := convert(src, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	session.Normalize(a.now())
	return &session, nil
}

func toUser(src types.User) (*models.User, error) {
	var user models.User
	if err := convert(src, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// convert copies between the SDK and model types through their shared
// GoTrue JSON shape.
func convert(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
