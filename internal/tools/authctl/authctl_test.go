package authctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/identity-service/internal/events"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories/memory"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/session"
	"github.com/SAP-F-2025/identity-service/internal/validator"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return ParseConfig(fs, args)
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"delete-everything"}, "unknown command"},
		{"signin", []string{"signin", "-email", "a@example.com", "-password", "secret1"}, ""},
		{"signin without password", []string{"signin", "-email", "a@example.com"}, "requires -email and -password"},
		{"signup with role", []string{"signup", "-email", "a@example.com", "-password", "secret1", "-role", "instructor"}, ""},
		{"signup with bad role", []string{"signup", "-email", "a@example.com", "-password", "secret1", "-role", "root"}, "unknown role"},
		{"reset without email", []string{"reset-password"}, "requires -email"},
		{"update password", []string{"update-password", "-password", "new-secret"}, ""},
		{"update password without password", []string{"update-password"}, "requires -password"},
		{"promote", []string{"promote", "-email", "a@example.com", "-role", "admin"}, ""},
		{"promote without role", []string{"promote", "-email", "a@example.com"}, "requires -email and -role"},
		{"watch with zero interval", []string{"watch", "-interval", "0s"}, "-interval must be positive"},
		{"whoami", []string{"whoami", "-json"}, ""},
		{"migrate", []string{"migrate"}, ""},
		{"unknown flag", []string{"whoami", "-verbose"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ParseConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfig_Environment(t *testing.T) {
	t.Setenv("AUTHCTL_SESSION", "work")
	t.Setenv("AUTHCTL_PASSWORD", "from-env")
	t.Setenv("AUTHCTL_TIMEOUT", "5s")

	cfg, err := parse(t, "signin", "-email", "a@example.com")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.SessionKey != "work" || cfg.Password != "from-env" || cfg.Timeout != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg, err = parse(t, "signin", "-email", "a@example.com", "-password", "flag-wins", "-session", "other")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Password != "flag-wins" || cfg.SessionKey != "other" {
		t.Errorf("flags should override env: %+v", cfg)
	}
}

func TestConfig_NeedsSession(t *testing.T) {
	for _, command := range Commands {
		want := command != CmdMigrate && command != CmdPromote
		if got := (Config{Command: command}).NeedsSession(); got != want {
			t.Errorf("%s: NeedsSession() = %v, want %v", command, got, want)
		}
	}
}

type cliFixture struct {
	provider *memory.Provider
	auth     services.AuthService
	logger   *slog.Logger
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := memory.NewProvider()
	provider.CreateUser("alice@example.com", "secret1", models.RoleUser)
	auth := services.NewAuthService(provider, events.NewMockEventPublisher(logger), logger, validator.New(), services.AuthServiceConfig{})
	return &cliFixture{provider: provider, auth: auth, logger: logger}
}

// run executes one command with a fresh session context, as each authctl
// invocation does.
func (f *cliFixture) run(t *testing.T, cfg Config) (string, string, error) {
	t.Helper()
	if cfg.SessionKey == "" {
		cfg.SessionKey = "default"
	}
	sc := session.New(f.auth, nil, cfg.SessionKey, f.logger)
	defer sc.Close()

	var out, errOut bytes.Buffer
	err := Run(context.Background(), cfg, Deps{Session: sc}, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestRun_SessionCommands(t *testing.T) {
	f := newCLIFixture(t)

	out, _, err := f.run(t, Config{Command: CmdWhoAmI})
	if err != nil || out != "signed out\n" {
		t.Fatalf("whoami = %q, %v", out, err)
	}

	out, _, err = f.run(t, Config{Command: CmdSignIn, Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signin error = %v", err)
	}
	if !strings.Contains(out, "<alice@example.com>") || !strings.Contains(out, "role:    user") {
		t.Errorf("signin output = %q", out)
	}

	out, _, err = f.run(t, Config{Command: CmdUpdateProfile, FullName: "Alice Liddell"})
	if err != nil {
		t.Fatalf("update-profile error = %v", err)
	}
	if !strings.Contains(out, "name:    Alice Liddell") {
		t.Errorf("update-profile output = %q", out)
	}

	_, _, err = f.run(t, Config{Command: CmdUpdateProfile, Role: "admin"})
	if !errors.Is(err, services.ErrForbidden) {
		t.Errorf("self promotion err = %v, want ErrForbidden", err)
	}

	out, _, err = f.run(t, Config{Command: CmdWhoAmI, JSONOutput: true})
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	var state session.State
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("whoami JSON: %v", err)
	}
	if !state.SignedIn() || state.Session.AccessToken != "" || state.Session.RefreshToken != "" {
		t.Errorf("state = %+v, want signed in without tokens", state.Session)
	}

	out, _, err = f.run(t, Config{Command: CmdUpdatePassword, Password: "new-secret"})
	if err != nil || out != "password updated\n" {
		t.Fatalf("update-password = %q, %v", out, err)
	}

	out, _, err = f.run(t, Config{Command: CmdSignOut})
	if err != nil || out != "signed out\n" {
		t.Fatalf("signout = %q, %v", out, err)
	}

	if _, _, err := f.run(t, Config{Command: CmdSignIn, Email: "alice@example.com", Password: "new-secret"}); err != nil {
		t.Errorf("signin with new password error = %v", err)
	}
}

func TestRun_SignUp(t *testing.T) {
	t.Run("signed in straight away", func(t *testing.T) {
		f := newCLIFixture(t)
		out, errOut, err := f.run(t, Config{Command: CmdSignUp, Email: "bob@example.com", Password: "secret1", Role: "instructor"})
		if err != nil {
			t.Fatalf("signup error = %v", err)
		}
		if !strings.Contains(out, "role:    instructor") || errOut != "" {
			t.Errorf("out = %q, errOut = %q", out, errOut)
		}
	})

	t.Run("needs confirmation", func(t *testing.T) {
		f := newCLIFixture(t)
		f.provider.RequireConfirmation(true)

		out, errOut, err := f.run(t, Config{Command: CmdSignUp, Email: "bob@example.com", Password: "secret1"})
		if err != nil {
			t.Fatalf("signup error = %v", err)
		}
		if out != "signed out\n" || !strings.Contains(errOut, "confirm the address") {
			t.Errorf("out = %q, errOut = %q", out, errOut)
		}
	})
}

func TestRun_SignOutProviderFailure(t *testing.T) {
	f := newCLIFixture(t)
	if _, _, err := f.run(t, Config{Command: CmdSignIn, Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signin error = %v", err)
	}
	f.provider.SetError(memory.OpSignOut, errors.New("gateway timeout"))

	out, errOut, err := f.run(t, Config{Command: CmdSignOut})
	if err != nil {
		t.Fatalf("signout error = %v", err)
	}
	if out != "signed out\n" || !strings.Contains(errOut, "local session cleared") {
		t.Errorf("out = %q, errOut = %q", out, errOut)
	}
}

func TestRun_ResetPassword(t *testing.T) {
	f := newCLIFixture(t)

	out, _, err := f.run(t, Config{Command: CmdResetPassword, Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("reset-password error = %v", err)
	}
	if out != "recovery email requested for alice@example.com\n" {
		t.Errorf("out = %q", out)
	}
	if got := f.provider.Recoveries(); len(got) != 1 {
		t.Errorf("recoveries = %v", got)
	}
}

func TestRun_SessionsAreKeyed(t *testing.T) {
	f := newCLIFixture(t)
	if _, _, err := f.run(t, Config{Command: CmdSignIn, SessionKey: "work", Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signin error = %v", err)
	}

	if out, _, _ := f.run(t, Config{Command: CmdWhoAmI, SessionKey: "personal"}); out != "signed out\n" {
		t.Errorf("other key = %q, want signed out", out)
	}
	if out, _, _ := f.run(t, Config{Command: CmdWhoAmI, SessionKey: "work"}); !strings.Contains(out, "alice@example.com") {
		t.Errorf("same key = %q, want signed in", out)
	}
}

func TestRun_Watch(t *testing.T) {
	f := newCLIFixture(t)
	sc := session.New(f.auth, nil, "default", f.logger)
	defer sc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{Command: CmdWatch, Interval: 10 * time.Millisecond}, Deps{Session: sc}, out, io.Discard)
	}()

	waitFor(t, func() bool { return strings.Contains(out.String(), "signed out") })
	if _, err := f.auth.SignIn(context.Background(), &services.SignInRequest{Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	// The next tick re-reads the store and prints the new state.
	waitFor(t, func() bool { return strings.Contains(out.String(), "<alice@example.com>") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestRun_MigrateAndPromote(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		if err := Run(ctx, Config{Command: CmdMigrate}, Deps{}, nil, nil); err == nil {
			t.Error("migrate without database should fail")
		}
		if err := Run(ctx, Config{Command: CmdPromote}, Deps{}, nil, nil); err == nil {
			t.Error("promote without database should fail")
		}
		if err := Run(ctx, Config{Command: CmdWhoAmI}, Deps{}, nil, nil); err == nil {
			t.Error("whoami without session should fail")
		}
	})

	t.Run("migrate", func(t *testing.T) {
		var out bytes.Buffer
		deps := Deps{Migrate: func(ctx context.Context) (int, error) { return 2, nil }}
		if err := Run(ctx, Config{Command: CmdMigrate}, deps, &out, nil); err != nil {
			t.Fatalf("migrate error = %v", err)
		}
		if out.String() != "applied 2 migration(s)\n" {
			t.Errorf("out = %q", out.String())
		}

		deps.Migrate = func(ctx context.Context) (int, error) { return 0, errors.New("syntax error") }
		if err := Run(ctx, Config{Command: CmdMigrate}, deps, &out, nil); err == nil {
			t.Error("expected migrate error")
		}
	})

	t.Run("promote", func(t *testing.T) {
		var gotEmail string
		var gotRole models.UserRole
		deps := Deps{Promote: func(ctx context.Context, email string, role models.UserRole) (*models.Profile, error) {
			gotEmail, gotRole = email, role
			return &models.Profile{ID: "id-1", Email: email, Role: role}, nil
		}}

		var out bytes.Buffer
		if err := Run(ctx, Config{Command: CmdPromote, Email: "root@example.com", Role: "admin"}, deps, &out, nil); err != nil {
			t.Fatalf("promote error = %v", err)
		}
		if gotEmail != "root@example.com" || gotRole != models.RoleAdmin {
			t.Errorf("promote called with %s %s", gotEmail, gotRole)
		}
		if out.String() != "root@example.com is now admin\n" {
			t.Errorf("out = %q", out.String())
		}

		out.Reset()
		if err := Run(ctx, Config{Command: CmdPromote, Email: "root@example.com", Role: "admin", JSONOutput: true}, deps, &out, nil); err != nil {
			t.Fatalf("promote error = %v", err)
		}
		var profile models.Profile
		if err := json.Unmarshal(out.Bytes(), &profile); err != nil || profile.Role != models.RoleAdmin {
			t.Errorf("JSON = %q, %v", out.String(), err)
		}
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
