package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/orbit/pkg/core"
)

// ConfigFileName is looked up from the working directory upwards.
const ConfigFileName = "orbit.yaml"

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "ORBIT_"

// Session backends.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the resolved client configuration.
//
// Values come from orbit.yaml, then a .env file next to it, then the
// process environment; later sources win.
type Config struct {
	Environment    string        `yaml:"environment" env:"ENVIRONMENT"`
	ContentURL     string        `yaml:"content_url" env:"CONTENT_URL"`
	FallbackURL    string        `yaml:"fallback_url" env:"FALLBACK_URL"`
	ProviderURL    string        `yaml:"provider_url" env:"PROVIDER_URL"`
	SessionBackend string        `yaml:"session_backend" env:"SESSION_BACKEND"`
	SessionDir     string        `yaml:"session_dir" env:"SESSION_DIR"`
	SessionFormat  string        `yaml:"session_format" env:"SESSION_FORMAT"`
	RedisURL       string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisNamespace string        `yaml:"redis_namespace" env:"REDIS_NAMESPACE"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit      float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst      int           `yaml:"rate_burst" env:"RATE_BURST"`
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// DefaultConfig targets a local replica.
func DefaultConfig() Config {
	return Config{
		Environment:    string(core.EnvLocal),
		ContentURL:     "http://127.0.0.1:4943",
		SessionBackend: BackendFile,
		SessionFormat:  "json",
		Timeout:        10 * time.Second,
		RateLimit:      10,
		RateBurst:      5,
	}
}

// LoadConfig resolves the configuration. path may be empty, in which case
// orbit.yaml is searched for from the working directory upwards; a missing
// file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if root, err := FindRoot("."); err == nil {
			path = filepath.Join(root, ConfigFileName)
		}
	}

	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	environ := map[string]string{}
	if dotenv, err := godotenv.Read(filepath.Join(dir, ".env")); err == nil {
		for k, v := range dotenv {
			environ[k] = v
		}
	}
	for k, v := range env.ToMap(os.Environ()) {
		environ[k] = v
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.SessionBackend {
	case BackendFile, BackendPebble, BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("session backend %q requires redis_url", c.SessionBackend)
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Env().IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("environment %q requires jwt_secret to verify delegations", c.Environment)
	}
	return nil
}

// Env returns the configured environment.
func (c Config) Env() core.Environment {
	return core.Environment(c.Environment)
}
