package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STORAGEGUEST_"

// Config is the configuration shared by the storageguest commands.
// Precedence: defaults < YAML file < STORAGEGUEST_* environment < flags.
type Config struct {
	LogLevel string      `yaml:"log_level" env:"LOG_LEVEL"`
	Frames   string      `yaml:"frames" env:"FRAMES"`
	Host     HostConfig  `yaml:"host" envPrefix:"HOST_"`
	Guest    GuestConfig `yaml:"guest" envPrefix:"GUEST_"`
	Redis    RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// HostConfig configures the storage host served by `serve` and `stdio`.
type HostConfig struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	Store          string        `yaml:"store" env:"STORE"`
	Dir            string        `yaml:"dir" env:"DIR"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// GuestConfig configures the sessions opened by `get`, `set` and `rm`.
type GuestConfig struct {
	Source         string        `yaml:"source" env:"SOURCE"`
	Origin         string        `yaml:"origin" env:"ORIGIN"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	Replay         string        `yaml:"replay" env:"REPLAY"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	Prefix   string        `yaml:"prefix" env:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Host: HostConfig{
			Addr:  ":8080",
			Store: "memory",
			Dir:   ".storageguest/kv",
		},
		Guest: GuestConfig{
			Source:         "ws://localhost:8080/frame",
			Origin:         "http://localhost",
			ConnectTimeout: 5 * time.Second,
			PollInterval:   125 * time.Millisecond,
			Replay:         "lifo",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "storageguest:kv:",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies STORAGEGUEST_* environment overrides to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Host.Store {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("host.store: unknown store %q (want memory, file or redis)", c.Host.Store))
	}
	switch c.Guest.Replay {
	case "lifo", "fifo":
	default:
		errs = append(errs, fmt.Errorf("guest.replay: unknown order %q (want lifo or fifo)", c.Guest.Replay))
	}
	if c.Guest.ConnectTimeout < 0 {
		errs = append(errs, errors.New("guest.connect_timeout: must not be negative"))
	}
	return errors.Join(errs...)
}
