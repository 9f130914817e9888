package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// minSecretLen is the smallest accepted HS256 signing secret.
const minSecretLen = 32

// Config holds all configuration for the vetcare process.
// Values come from an optional YAML file; environment variables override them.
// Secrets are only read from the environment.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Broker   BrokerConfig   `yaml:"broker"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL         string        `yaml:"-" env:"DATABASE_URL"` // Secret - not in YAML
	MaxConns    int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MaxConnIdle time.Duration `yaml:"max_conn_idle" env:"DB_MAX_CONN_IDLE" env-default:"5m"`
}

// AuthConfig holds credential hashing and token signing settings.
type AuthConfig struct {
	TokenSecret string `yaml:"-" env:"TOKEN_SECRET"` // Secret - not in YAML

	// HashCost is the bcrypt cost factor.
	HashCost int `yaml:"hash_cost" env:"HASH_COST" env-default:"10"`
	// HashConcurrency bounds how many bcrypt computations run at once.
	HashConcurrency int64 `yaml:"hash_concurrency" env:"HASH_CONCURRENCY" env-default:"4"`
}

// BrokerConfig holds the AMQP settings for rating events. An empty URL disables the consumer.
type BrokerConfig struct {
	URL      string `yaml:"-" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE" env-default:"vetcare.events"`
	Queue    string `yaml:"queue" env:"AMQP_QUEUE" env-default:"rating-aggregator"`
}

// Enabled reports whether a broker URL was configured.
func (b BrokerConfig) Enabled() bool {
	return b.URL != ""
}

// Load reads configuration from path (if it exists) with environment overrides.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if len(c.Auth.TokenSecret) < minSecretLen {
		return fmt.Errorf("config: TOKEN_SECRET must be at least %d bytes", minSecretLen)
	}
	if c.Auth.HashCost < 4 || c.Auth.HashCost > 31 {
		return fmt.Errorf("config: HASH_COST must be between 4 and 31, got %d", c.Auth.HashCost)
	}
	if c.Auth.HashConcurrency <= 0 {
		return fmt.Errorf("config: HASH_CONCURRENCY must be positive")
	}
	return nil
}
