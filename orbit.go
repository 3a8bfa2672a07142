package orbit

import (
	"log/slog"
	"time"

	"github.com/aretw0/orbit/internal/platform"
	"github.com/aretw0/orbit/pkg/core"
)

// --- Types ---

// Client is a fully wired orbit client.
type Client = platform.Client

// Config is the resolved client configuration.
type Config = platform.Config

// Option configures New.
type Option = platform.Option

// --- Configuration ---

// LoadConfig reads orbit.yaml, .env and ORBIT_* variables. An empty path
// searches for orbit.yaml from the working directory upwards.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// DefaultConfig targets a local replica.
func DefaultConfig() Config {
	return platform.DefaultConfig()
}

// WithConfig uses cfg as is.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithConfigFile loads configuration from path.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithSessionStore injects a custom session store.
func WithSessionStore(store core.SessionStore) Option {
	return platform.WithSessionStore(store)
}

// WithContentService injects the remote content service.
func WithContentService(cs core.ContentService) Option {
	return platform.WithContentService(cs)
}

// WithIdentityProvider injects the delegated identity provider.
func WithIdentityProvider(p core.IdentityProvider) Option {
	return platform.WithIdentityProvider(p)
}

// WithEnvironment overrides the configured environment.
func WithEnvironment(env core.Environment) Option {
	return platform.WithEnvironment(env)
}

// WithSessionBackend selects "file", "pebble", "redis" or "memory".
func WithSessionBackend(name string) Option {
	return platform.WithSessionBackend(name)
}

// WithSessionDir overrides the session directory.
func WithSessionDir(dir string) Option {
	return platform.WithSessionDir(dir)
}

// WithContentURL overrides the content service URL.
func WithContentURL(url string) Option {
	return platform.WithContentURL(url)
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// WithDevSafety controls the temporary session dir used by dev builds.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler receives asynchronous watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a client. It does not touch the network.
func New(opts ...Option) (*Client, error) {
	return platform.New(opts...)
}

// --- Utils ---

// IsDevRun reports whether the process runs via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for orbit.yaml or a .orbit directory.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
