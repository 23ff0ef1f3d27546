// Package authctl implements the authctl command: a terminal client for the
// identity service that keeps one signed-in session per session key.
package authctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/session"
)

const (
	CmdMigrate        = "migrate"
	CmdSignUp         = "signup"
	CmdSignIn         = "signin"
	CmdSignOut        = "signout"
	CmdWhoAmI         = "whoami"
	CmdUpdateProfile  = "update-profile"
	CmdResetPassword  = "reset-password"
	CmdUpdatePassword = "update-password"
	CmdWatch          = "watch"
	CmdPromote        = "promote"
)

var Commands = []string{
	CmdMigrate, CmdSignUp, CmdSignIn, CmdSignOut, CmdWhoAmI,
	CmdUpdateProfile, CmdResetPassword, CmdUpdatePassword, CmdWatch, CmdPromote,
}

// Config holds authctl command configuration.
type Config struct {
	Command    string
	SessionKey string
	Email      string
	Password   string
	FullName   string
	AvatarURL  string
	Role       string
	RedirectTo string
	JSONOutput bool
	Interval   time.Duration
	Timeout    time.Duration
}

type envConfig struct {
	SessionKey string        `env:"AUTHCTL_SESSION" envDefault:"default"`
	Password   string        `env:"AUTHCTL_PASSWORD"`
	Timeout    time.Duration `env:"AUTHCTL_TIMEOUT" envDefault:"30s"`
}

// ParseConfig reads the subcommand from args[0] and its flags from the rest.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if len(args) == 0 {
		return Config{}, fmt.Errorf("missing command, want one of: %s", strings.Join(Commands, ", "))
	}

	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		Command:    args[0],
		SessionKey: envCfg.SessionKey,
		Password:   envCfg.Password,
		Timeout:    envCfg.Timeout,
		Interval:   30 * time.Second,
	}

	fs.StringVar(&cfg.SessionKey, "session", cfg.SessionKey, "session key to act on (default: AUTHCTL_SESSION or \"default\")")
	fs.StringVar(&cfg.Email, "email", "", "account email")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "account password (default: AUTHCTL_PASSWORD)")
	fs.StringVar(&cfg.FullName, "full-name", "", "display name")
	fs.StringVar(&cfg.AvatarURL, "avatar-url", "", "avatar image URL")
	fs.StringVar(&cfg.Role, "role", "", "role: user, instructor or admin")
	fs.StringVar(&cfg.RedirectTo, "redirect-to", "", "URL the recovery email links back to")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "print JSON")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "watch: how often to re-read the session")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout (watch ignores it)")
	if err := fs.Parse(args[1:]); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Command {
	case CmdSignUp, CmdSignIn:
		if c.Email == "" || c.Password == "" {
			return fmt.Errorf("%s requires -email and -password", c.Command)
		}
	case CmdResetPassword:
		if c.Email == "" {
			return errors.New("reset-password requires -email")
		}
	case CmdUpdatePassword:
		if c.Password == "" {
			return errors.New("update-password requires -password")
		}
	case CmdPromote:
		if c.Email == "" || c.Role == "" {
			return errors.New("promote requires -email and -role")
		}
	case CmdWatch:
		if c.Interval <= 0 {
			return errors.New("-interval must be positive")
		}
	case CmdMigrate, CmdSignOut, CmdWhoAmI, CmdUpdateProfile:
	default:
		return fmt.Errorf("unknown command %q, want one of: %s", c.Command, strings.Join(Commands, ", "))
	}
	if c.Role != "" && !models.UserRole(c.Role).IsValid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// NeedsSession reports whether the command works through a session context.
func (c Config) NeedsSession() bool {
	return c.Command != CmdMigrate && c.Command != CmdPromote
}

// Deps are the pieces Run drives. Session is required for session commands;
// Migrate and Promote for their commands.
type Deps struct {
	Session *session.Context
	Migrate func(ctx context.Context) (int, error)
	Promote func(ctx context.Context, email string, role models.UserRole) (*models.Profile, error)
}

// Run executes one authctl command.
func Run(ctx context.Context, cfg Config, deps Deps, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	switch cfg.Command {
	case CmdMigrate:
		if deps.Migrate == nil {
			return errors.New("migrate requires DATABASE_URL")
		}
		applied, err := deps.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", applied)
		return nil

	case CmdPromote:
		if deps.Promote == nil {
			return errors.New("promote requires DATABASE_URL")
		}
		profile, err := deps.Promote(ctx, cfg.Email, models.UserRole(cfg.Role))
		if err != nil {
			return err
		}
		return printValue(out, cfg.JSONOutput, profile, func() string {
			return fmt.Sprintf("%s is now %s\n", profile.Email, profile.Role)
		})
	}

	if deps.Session == nil {
		return errors.New("session context not configured")
	}
	sc := deps.Session

	if err := sc.Start(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	switch cfg.Command {
	case CmdSignUp:
		req := &services.SignUpRequest{Email: cfg.Email, Password: cfg.Password}
		if cfg.FullName != "" {
			req.FullName = &cfg.FullName
		}
		if cfg.Role != "" {
			role := models.UserRole(cfg.Role)
			req.Role = &role
		}
		result, err := sc.SignUp(ctx, req)
		if err != nil {
			return err
		}
		if result.NeedsConfirmation() {
			fmt.Fprintln(errOut, "check your inbox to confirm the address before signing in")
		}
		return printState(out, cfg.JSONOutput, sc.State())

	case CmdSignIn:
		if _, err := sc.SignIn(ctx, &services.SignInRequest{Email: cfg.Email, Password: cfg.Password}); err != nil {
			return err
		}
		return printState(out, cfg.JSONOutput, sc.State())

	case CmdSignOut:
		if err := sc.SignOut(ctx); err != nil {
			fmt.Fprintf(errOut, "provider sign out failed, local session cleared: %v\n", err)
		}
		return printState(out, cfg.JSONOutput, sc.State())

	case CmdWhoAmI:
		return printState(out, cfg.JSONOutput, sc.State())

	case CmdUpdateProfile:
		req := &services.UpdateProfileRequest{}
		if cfg.FullName != "" {
			req.FullName = &cfg.FullName
		}
		if cfg.AvatarURL != "" {
			req.AvatarURL = &cfg.AvatarURL
		}
		if cfg.Role != "" {
			role := models.UserRole(cfg.Role)
			req.Role = &role
		}
		if _, err := sc.UpdateProfile(ctx, req); err != nil {
			return err
		}
		return printState(out, cfg.JSONOutput, sc.State())

	case CmdResetPassword:
		if err := sc.ResetPassword(ctx, &services.ResetPasswordRequest{Email: cfg.Email, RedirectTo: cfg.RedirectTo}); err != nil {
			return err
		}
		fmt.Fprintf(out, "recovery email requested for %s\n", cfg.Email)
		return nil

	case CmdUpdatePassword:
		if _, err := sc.UpdatePassword(ctx, &services.UpdatePasswordRequest{Password: cfg.Password}); err != nil {
			return err
		}
		fmt.Fprintln(out, "password updated")
		return nil

	case CmdWatch:
		return watch(ctx, sc, cfg, out, errOut)
	}

	return fmt.Errorf("unknown command %q", cfg.Command)
}

// watch prints every state change and re-reads the session on an interval,
// which also keeps the access token refreshed.
func watch(ctx context.Context, sc *session.Context, cfg Config, out, errOut io.Writer) error {
	changes := make(chan session.State, 16)
	unsubscribe := sc.Subscribe(func(state session.State) {
		select {
		case changes <- state:
		default:
		}
	})
	defer unsubscribe()

	if err := printState(out, cfg.JSONOutput, sc.State()); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-changes:
			if err := printState(out, cfg.JSONOutput, state); err != nil {
				return err
			}
		case <-ticker.C:
			if err := sc.Refresh(ctx); err != nil {
				fmt.Fprintf(errOut, "refresh failed: %v\n", err)
			}
		}
	}
}

func printState(out io.Writer, asJSON bool, state session.State) error {
	return printValue(out, asJSON, state, func() string {
		if !state.SignedIn() {
			return "signed out\n"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "user:    %s <%s>\n", state.User.ID, state.User.Email)
		if profile := state.User.Profile; profile != nil {
			name := ""
			if profile.FullName != nil {
				name = *profile.FullName
			}
			fmt.Fprintf(&b, "name:    %s\n", name)
			fmt.Fprintf(&b, "role:    %s\n", profile.Role)
		} else {
			fmt.Fprintf(&b, "role:    (no profile)\n")
		}
		fmt.Fprintf(&b, "admin:   %t\n", state.IsAdmin)
		fmt.Fprintf(&b, "expires: %s\n", state.Session.ExpiresTime().UTC().Format(time.RFC3339))
		if state.Event != "" {
			fmt.Fprintf(&b, "event:   %s\n", state.Event)
		}
		return b.String()
	})
}

func printValue(out io.Writer, asJSON bool, value any, text func() string) error {
	if !asJSON {
		_, err := io.WriteString(out, text())
		return err
	}
	if state, ok := value.(session.State); ok && state.Session != nil {
		// Tokens stay out of terminal output.
		state.Session.AccessToken = ""
		state.Session.RefreshToken = ""
		value = state
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
