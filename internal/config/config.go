package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Profile backends selectable with PROFILE_BACKEND.
const (
	ProfileBackendPostgREST = "postgrest"
	ProfileBackendPostgres  = "postgres"
)

type Config struct {
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	Port        string     `env:"PORT" envDefault:"8080"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`

	DatabaseURL    string `env:"DATABASE_URL"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
	ProfileBackend string `env:"PROFILE_BACKEND" envDefault:"postgrest"`

	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	Kafka KafkaConfig `envPrefix:"KAFKA_"`

	Auth AuthConfig
}

type SupabaseConfig struct {
	URL         string        `env:"URL"`
	AnonKey     string        `env:"ANON_KEY"`
	JWTSecret   string        `env:"JWT_SECRET"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"identity.auth_events"`
}

type AuthConfig struct {
	AllowAdminSignup    bool          `env:"ALLOW_ADMIN_SIGNUP" envDefault:"false"`
	RefreshMargin       time.Duration `env:"REFRESH_MARGIN" envDefault:"60s"`
	CookieSecure        bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain        string        `env:"COOKIE_DOMAIN"`
	SignUpRedirectURL   string        `env:"SIGNUP_REDIRECT_URL"`
	PasswordRedirectURL string        `env:"PASSWORD_RESET_REDIRECT_URL"`
	AllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	} else if u, err := url.Parse(c.Supabase.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SUPABASE_URL %q is not a valid URL", c.Supabase.URL))
	}
	if c.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}

	switch c.ProfileBackend {
	case ProfileBackendPostgREST:
	case ProfileBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("PROFILE_BACKEND=postgres requires DATABASE_URL"))
		}
		if c.Supabase.JWTSecret == "" {
			errs = append(errs, errors.New("PROFILE_BACKEND=postgres requires SUPABASE_JWT_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_BACKEND must be %q or %q, got %q", ProfileBackendPostgREST, ProfileBackendPostgres, c.ProfileBackend))
	}

	if c.RunMigrations && c.DatabaseURL == "" {
		errs = append(errs, errors.New("RUN_MIGRATIONS requires DATABASE_URL"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Auth.RefreshMargin < 0 {
		errs = append(errs, errors.New("REFRESH_MARGIN cannot be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
