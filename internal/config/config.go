package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the migration tooling.
type Config struct {
	AppName        string `validate:"required"`
	AppEnv         string `validate:"required,oneof=development staging production test"`
	LogLevel       string
	DatabaseDriver string `validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `validate:"required"`
	RedisURL       string
	CacheNamespace string `validate:"required"`
	CacheAutoFlush bool
}

// ZerologLevel maps the configured log level onto zerolog's scale. Unknown
// values fall back to info so a typo never silences the logs.
func (c Config) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return lvl
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Strata")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("cache.namespace", "strata")
	v.SetDefault("cache.auto_flush", true)

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		LogLevel:       v.GetString("log.level"),
		DatabaseDriver: strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		CacheNamespace: v.GetString("cache.namespace"),
		CacheAutoFlush: v.GetBool("cache.auto_flush"),
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
