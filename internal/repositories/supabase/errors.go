package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// APIError is a non-2xx response from either API. Auth errors arrive as
// {"error","error_description"} or {"code","msg","error_code"}; REST errors as
// {"code","message","details","hint"}.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	// The REST SDK does not expose the status.
	if e.Status == 0 {
		return fmt.Sprintf("supabase: %s (code %s)", e.Message, e.Code)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.Status)
}

// Unwrap maps the response onto repository sentinels so callers can use
// errors.Is without knowing about this package.
func (e *APIError) Unwrap() []error {
	var errs []error
	switch {
	case e.Code == "42501" || e.Code == "PGRST301" || e.Status == http.StatusForbidden:
		errs = append(errs, repositories.ErrPermissionDenied)
	case e.Code == "23505" || e.Status == http.StatusConflict || e.IsUserAlreadyExists():
		errs = append(errs, repositories.ErrDuplicate)
	}
	if e.IsInvalidCredentials() {
		errs = append(errs, repositories.ErrInvalidCredentials)
	}
	if e.IsEmailNotConfirmed() {
		errs = append(errs, repositories.ErrEmailNotConfirmed)
	}
	if e.IsRateLimited() {
		errs = append(errs, repositories.ErrRateLimited)
	}
	if e.IsSessionInvalid() {
		errs = append(errs, repositories.ErrSessionInvalid)
	}
	return errs
}

func (e *APIError) IsInvalidCredentials() bool {
	if e.Code == "invalid_credentials" || e.Code == "invalid_grant" {
		return true
	}
	return e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "invalid login credentials")
}

func (e *APIError) IsEmailNotConfirmed() bool {
	return e.Code == "email_not_confirmed" || strings.Contains(strings.ToLower(e.Message), "email not confirmed")
}

func (e *APIError) IsUserAlreadyExists() bool {
	return e.Code == "user_already_exists" || e.Code == "email_exists" ||
		strings.Contains(strings.ToLower(e.Message), "already registered")
}

func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Code == "over_email_send_rate_limit" || e.Code == "over_request_rate_limit"
}

// IsSessionInvalid reports errors after which a stored session cannot be used again.
func (e *APIError) IsSessionInvalid() bool {
	switch e.Code {
	case "refresh_token_not_found", "refresh_token_already_used", "session_not_found", "session_expired", "bad_jwt":
		return true
	}
	return e.Status == http.StatusUnauthorized ||
		(e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "refresh token"))
}

// AsAPIError unwraps err to an *APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Message = firstString(raw, "msg", "message", "error_description", "error")
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.Code = firstString(raw, "error_code", "code")
	if apiErr.Code == "" {
		// Older auth servers put the OAuth error kind in "error" and the text in "error_description".
		if _, ok := raw["error_description"]; ok {
			apiErr.Code = firstString(raw, "error")
		}
	}
	apiErr.Details = firstString(raw, "details")
	apiErr.Hint = firstString(raw, "hint")

	return apiErr
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch value := raw[key].(type) {
		case string:
			if value != "" {
				return value
			}
		case float64:
			return fmt.Sprintf("%.0f", value)
		}
	}
	return ""
}

var (
	// gotrue-go reports non-2xx answers as "response status code <n>: <body>".
	authStatusError = regexp.MustCompile(`(?s)response status code (\d+)(?:: (.*))?$`)
	// postgrest-go reports them as "(<code>) <message>".
	restStatusError = regexp.MustCompile(`(?s)^\(([^)]*)\) (.*)$`)
)

// translateError turns the SDKs' formatted errors back into *APIError.
// Transport errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAPIError(err); ok {
		return err
	}
	msg := err.Error()
	if m := authStatusError.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return parseAPIError(status, []byte(m[2]))
	}
	if m := restStatusError.FindStringSubmatch(msg); m != nil {
		return &APIError{Code: m[1], Message: m[2]}
	}
	return err
}
