package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stratahq/strata/internal/cache"
	"github.com/stratahq/strata/internal/config"
	"github.com/stratahq/strata/internal/database"
	"github.com/stratahq/strata/internal/migrate"
	"github.com/stratahq/strata/internal/migrations"
	"github.com/stratahq/strata/internal/observability"
	"github.com/stratahq/strata/internal/schema"
	"github.com/stratahq/strata/internal/seed"
)

const usage = `usage: strata <command>

commands:
  bootstrap        install the base system tables
  seed             load demo fixtures (refused in production)
  migrate:latest   apply every pending migration
  migrate:up       apply the next pending migration
  migrate:down     revert the most recent applied migration
  migrate:status   list migrations and their state
  doctor           check connectivity and pending work
`

type dependencies struct {
	cfg    config.Config
	db     *gorm.DB
	redis  *redis.Client
	runner *migrate.Runner
	logger zerolog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", cfg.AppName).Logger().
		Level(cfg.ZerologLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var flusher *cache.Flusher
	if redisClient != nil && cfg.CacheAutoFlush {
		flusher = cache.NewFlusher(redisClient, cfg.CacheNamespace, logger)
	}

	deps := dependencies{
		cfg:    cfg,
		db:     db,
		redis:  redisClient,
		runner: migrate.NewRunner(db, migrations.All(), flusher, logger),
		logger: logger,
	}

	err = dispatch(ctx, command, deps)
	observability.LogSummary(logger)
	if err != nil {
		logger.Error().Err(err).Str("command", command).Msg("command failed")
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string, deps dependencies) error {
	switch command {
	case "bootstrap":
		return schema.Install(ctx, deps.db, deps.logger)
	case "seed":
		return seed.NewSeeder(deps.db, deps.cfg.AppEnv, deps.logger).Seed(ctx)
	case "migrate:latest":
		return deps.runner.Latest(ctx)
	case "migrate:up":
		return deps.runner.Up(ctx)
	case "migrate:down":
		return deps.runner.Down(ctx)
	case "migrate:status":
		return printStatus(ctx, deps.runner)
	case "doctor":
		return doctor(ctx, deps)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied " + s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-12s %-32s %s\n", s.Version, s.Name, state)
	}

	return nil
}

// doctor verifies connectivity and reports how much work is pending.
func doctor(ctx context.Context, deps dependencies) error {
	sqlDB, err := deps.db.DB()
	if err != nil {
		return fmt.Errorf("database handle unavailable: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	redisState := "not configured"
	if deps.redis != nil {
		if err := deps.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		redisState = "ok"
	}

	statuses, err := deps.runner.Status(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, s := range statuses {
		if !s.Applied {
			pending++
		}
	}

	deps.logger.Info().
		Str("service", deps.cfg.AppName).
		Str("environment", deps.cfg.AppEnv).
		Str("database", "ok").
		Str("redis", redisState).
		Int("migrations_pending", pending).
		Msg("service healthy")

	return nil
}
