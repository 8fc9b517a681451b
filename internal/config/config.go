package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRIVIA_REDIS_ADDR.
const EnvPrefix = "TRIVIA_"

type Config struct {
	Server struct {
		Port      string `yaml:"port" env:"PORT"`
		PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
		Profile   bool   `yaml:"profile" env:"PROFILE"`
	} `yaml:"server" envPrefix:"SERVER_"`
	Store struct {
		Driver     string `yaml:"driver" env:"DRIVER"` // memory, postgres or sqlite
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"store" envPrefix:"STORE_"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		TTL      string `yaml:"ttl" env:"TTL"`
		Prefix   string `yaml:"prefix" env:"PREFIX"`
	} `yaml:"redis" envPrefix:"REDIS_"`
	Postgres struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz struct {
		TTL  string `yaml:"ttl" env:"TTL"`
		File string `yaml:"file" env:"FILE"`
	} `yaml:"quiz" envPrefix:"QUIZ_"`
	Scoring struct {
		MaxPoints       int    `yaml:"max_points" env:"MAX_POINTS"`
		ReferenceWindow string `yaml:"reference_window" env:"REFERENCE_WINDOW"`
	} `yaml:"scoring" envPrefix:"SCORING_"`
	Broadcast struct {
		Buffer        int    `yaml:"buffer" env:"BUFFER"`
		SinkTimeout   string `yaml:"sink_timeout" env:"SINK_TIMEOUT"`
		RedactAnswers bool   `yaml:"redact_answers" env:"REDACT_ANSWERS"`
	} `yaml:"broadcast" envPrefix:"BROADCAST_"`
	Codes struct {
		MaxAttempts int    `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
		TTL         string `yaml:"ttl" env:"TTL"`
	} `yaml:"codes" envPrefix:"CODES_"`
	Log struct {
		Level  string `yaml:"level" env:"LEVEL"`
		Format string `yaml:"format" env:"FORMAT"`
	} `yaml:"log" envPrefix:"LOG_"`
}

// Load reads YAML config from path, then applies TRIVIA_* environment overrides.
// A missing file is not an error; the environment and defaults still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
		if c.Postgres.URL != "" {
			c.Store.Driver = "postgres"
		}
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "trivia.db"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "trivia:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Postgres.URL == "" {
			return errors.New("store driver postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Scoring.MaxPoints < 0 {
		return fmt.Errorf("scoring.max_points must not be negative: %d", c.Scoring.MaxPoints)
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
