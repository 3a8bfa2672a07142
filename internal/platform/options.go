package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// options holds the internal configuration for an orbit client.
type options struct {
	config     *Config
	configPath string
	logger     *slog.Logger

	store    core.SessionStore
	content  core.ContentService
	provider core.IdentityProvider

	overrides []func(*Config)
	devSafety bool
	errorFn   func(error)
}

// Option defines a functional option for configuring the client.
type Option func(*options)

func defaultOptions() *options {
	return &options{devSafety: true}
}

// WithConfig uses cfg as is, skipping file and environment lookup.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithConfigFile loads configuration from path instead of searching for it.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSessionStore injects a session store, skipping the configured backend.
func WithSessionStore(store core.SessionStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithContentService injects the remote content service (e.g. a test double).
func WithContentService(cs core.ContentService) Option {
	return func(o *options) {
		o.content = cs
	}
}

// WithIdentityProvider injects the delegated identity provider.
func WithIdentityProvider(p core.IdentityProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithEnvironment overrides the configured environment.
func WithEnvironment(env core.Environment) Option {
	return override(func(c *Config) { c.Environment = string(env) })
}

// WithSessionBackend selects "file", "pebble", "redis" or "memory".
func WithSessionBackend(name string) Option {
	return override(func(c *Config) { c.SessionBackend = name })
}

// WithSessionDir overrides where file and pebble backends keep the session.
func WithSessionDir(dir string) Option {
	return override(func(c *Config) { c.SessionDir = dir })
}

// WithContentURL overrides the content service base URL.
func WithContentURL(url string) Option {
	return override(func(c *Config) { c.ContentURL = url })
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return override(func(c *Config) { c.Timeout = d })
}

// WithDevSafety controls whether `go run` and `go test` builds keep their
// session in a temporary directory. Enabled by default.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithWatcherErrorHandler receives asynchronous session watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorFn = fn
	}
}

func override(fn func(*Config)) Option {
	return func(o *options) {
		o.overrides = append(o.overrides, fn)
	}
}
