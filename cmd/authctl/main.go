// Package main provides the authctl command line client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/identity-service/internal/config"
	"github.com/SAP-F-2025/identity-service/internal/events"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/session"
	"github.com/SAP-F-2025/identity-service/internal/tools/authctl"
	"github.com/SAP-F-2025/identity-service/internal/validator"
	"github.com/SAP-F-2025/identity-service/pkg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.CommandLine.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: authctl <command> [flags]\n\ncommands: %v\n\nflags:\n", authctl.Commands)
		flag.PrintDefaults()
	}

	cliCfg, err := authctl.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cliCfg.Command != authctl.CmdWatch {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCfg.Timeout)
		defer cancel()
	}

	deps := authctl.Deps{}

	if cfg.DatabaseURL != "" {
		deps.Migrate = func(ctx context.Context) (int, error) {
			return pkg.RunMigrations(ctx, cfg)
		}
		deps.Promote = func(ctx context.Context, email string, role models.UserRole) (*models.Profile, error) {
			pool, err := pkg.NewPgxPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			defer pool.Close()
			return authctl.NewPromoter(pool).Promote(ctx, email, role)
		}
	}

	if cliCfg.NeedsSession() {
		sc, shutdown, err := newSessionContext(ctx, cfg, cliCfg.SessionKey, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		deps.Session = sc
	}

	return authctl.Run(ctx, cliCfg, deps, os.Stdout, os.Stderr)
}

// newSessionContext wires the same stack as the server. Without REDIS_URL
// the session lives only as long as this process.
func newSessionContext(ctx context.Context, cfg *config.Config, sessionKey string, logger *slog.Logger) (*session.Context, func(), error) {
	var db *gorm.DB
	var err error
	if cfg.ProfileBackend == config.ProfileBackendPostgres {
		db, err = pkg.InitDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, err
		}
	} else {
		logger.Warn("REDIS_URL not set, the session will not outlive this command")
	}

	repoManager := postgres.NewRepositoryManager(pkg.NewRepositoryConfig(cfg, db, redisClient))
	if err := repoManager.Initialize(); err != nil {
		return nil, nil, err
	}

	bus := events.NewBus(logger)
	publisher, err := events.NewPublisher(bus, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	if err != nil {
		return nil, nil, err
	}

	serviceManager := services.NewServiceManager(repoManager, publisher, logger, validator.New(), pkg.NewServiceManagerConfig(cfg))
	if err := serviceManager.Initialize(ctx); err != nil {
		return nil, nil, err
	}

	sc := session.New(serviceManager.Auth(), bus, sessionKey, logger)
	shutdown := func() {
		sc.Close()
		if err := serviceManager.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown services", "error", err)
		}
	}
	return sc, shutdown, nil
}
