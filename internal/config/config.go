// Package config loads runtime settings from defaults, an optional file and
// PERSONDB_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Policy   PolicyConfig  `mapstructure:"policy" validate:"required"`
	Limiter  LimiterConfig `mapstructure:"limiter" validate:"required"`
	Auth     AuthConfig    `mapstructure:"auth" validate:"required"`
}

// PolicyConfig contains validation policy settings.
type PolicyConfig struct {
	MinPasswordLen int `mapstructure:"min_password_len" validate:"required,gte=3"`
}

// LimiterConfig contains credential verification lockout settings.
type LimiterConfig struct {
	Window   time.Duration `mapstructure:"window" validate:"required,gt=0"`
	MaxFails int           `mapstructure:"max_fails" validate:"required,gte=1"`
	BlockFor time.Duration `mapstructure:"block_for" validate:"required,gt=0"`
}

// AuthConfig contains access token settings. An empty SignKey makes the
// binary generate a random key at startup.
type AuthConfig struct {
	SignKey   string        `mapstructure:"sign_key" validate:"omitempty,min=32"`
	AccessTTL time.Duration `mapstructure:"access_ttl" validate:"required,gt=0"`
}

const envPrefix = "PERSONDB"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("policy.min_password_len", 10)
	v.SetDefault("limiter.window", 15*time.Minute)
	v.SetDefault("limiter.max_fails", 5)
	v.SetDefault("limiter.block_for", 15*time.Minute)
	// empty default so PERSONDB_AUTH_SIGN_KEY is seen by Unmarshal
	v.SetDefault("auth.sign_key", "")
	v.SetDefault("auth.access_ttl", 15*time.Minute)
}

// Load reads configuration. Environment variables take precedence over values
// from the file at path; an empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
