package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/orbit/pkg/adapters/fs"
	"github.com/aretw0/orbit/pkg/adapters/httpapi"
	"github.com/aretw0/orbit/pkg/adapters/kv"
	lifecycleadapter "github.com/aretw0/orbit/pkg/adapters/lifecycle"
	"github.com/aretw0/orbit/pkg/adapters/memory"
	redisstore "github.com/aretw0/orbit/pkg/adapters/redis"
	"github.com/aretw0/orbit/pkg/core"
	"github.com/aretw0/orbit/pkg/identity"
	"github.com/aretw0/orbit/pkg/timeline"
)

// DelegationFileName holds the delegation of a delegated session next to
// the persisted session.
const DelegationFileName = "orbit_delegation.json"

// ErrWatchUnsupported is returned by Follow for stores that cannot report
// external changes.
var ErrWatchUnsupported = errors.New("session store does not support watching")

// Client wires the session manager and the sync engine over one shared
// state.
type Client struct {
	Config   Config
	State    *core.State
	Identity *identity.Manager
	Timeline *timeline.Engine
	Store    core.SessionStore
	Content  core.ContentService
	Provider core.IdentityProvider

	logger     *slog.Logger
	sessionDir string
	closers    []io.Closer
}

// New builds a client from configuration and options. It does not touch
// the network; call Bootstrap to restore the session.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg Config
	if o.config != nil {
		cfg = *o.config
	} else {
		loaded, err := LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for _, fn := range o.overrides {
		fn(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		Config:     cfg,
		State:      core.NewState(),
		logger:     logger,
		sessionDir: ResolveSessionDir(cfg.SessionDir, o.devSafety && IsDevRun()),
	}

	store, err := c.openStore(o)
	if err != nil {
		return nil, err
	}
	c.Store = store

	var ident *httpapi.IdentityClient
	c.Provider = o.provider
	if c.Provider == nil && cfg.Env().IsProduction() {
		ident = httpapi.NewIdentityClient(httpapi.IdentityConfig{
			Secret:    []byte(cfg.JWTSecret),
			TokenFile: c.delegationFile(),
			Logger:    logger,
		})
		c.Provider = ident
	}

	c.Content = o.content
	if c.Content == nil {
		content, err := httpapi.NewContentClient(httpapi.ContentConfig{
			BaseURL:     cfg.ContentURL,
			FallbackURL: cfg.FallbackURL,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			Burst:       cfg.RateBurst,
			Caller:      c.caller(ident),
			Logger:      logger,
		})
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Content = content
	}

	c.Identity = identity.NewManager(c.State, c.Store, c.Provider, identity.Config{
		Environment: cfg.Env(),
		ProviderURL: cfg.ProviderURL,
		Logger:      logger,
	})
	c.Timeline = timeline.NewEngine(c.State, c.Content, timeline.Config{
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	return c, nil
}

// caller sends the active identity with every content request, plus the
// delegation token for delegated sessions.
func (c *Client) caller(ident *httpapi.IdentityClient) httpapi.Caller {
	return func() (string, string) {
		sess, ok := c.State.Session()
		if !ok {
			return "", ""
		}
		if sess.Mode == core.ModeDelegated && ident != nil {
			return sess.Identity.Handle, ident.Token()
		}
		return sess.Identity.Handle, ""
	}
}

// delegationFile is empty for the memory backend, whose sessions do not
// outlive the process either.
func (c *Client) delegationFile() string {
	if c.Config.SessionBackend == BackendMemory {
		return ""
	}
	return filepath.Join(c.sessionDir, DelegationFileName)
}

func (c *Client) openStore(o *options) (core.SessionStore, error) {
	if o.store != nil {
		return o.store, nil
	}
	cfg := c.Config
	dir := c.sessionDir

	switch cfg.SessionBackend {
	case BackendMemory:
		return memory.NewSessionStore(), nil
	case BackendPebble:
		store, err := kv.Open(filepath.Join(dir, "session.db"), c.logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		return store, nil
	case BackendRedis:
		store, err := redisstore.NewSessionStore(cfg.RedisURL, redisstore.Options{
			Namespace: cfg.RedisNamespace,
			Logger:    c.logger,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		return store, nil
	case BackendFile, "":
		return fs.NewSessionStore(fs.Config{
			Dir:          dir,
			Format:       cfg.SessionFormat,
			Logger:       c.logger,
			ErrorHandler: o.errorFn,
		}), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// Bootstrap restores the persisted session.
func (c *Client) Bootstrap(ctx context.Context) (identity.Phase, error) {
	return c.Identity.Bootstrap(ctx)
}

// Follow reloads the session whenever another process changes it and
// reports each change to fn. It blocks until ctx is done.
func (c *Client) Follow(ctx context.Context, fn func(core.Event, identity.Phase)) error {
	ws, ok := c.Store.(core.WatchableStore)
	if !ok {
		return ErrWatchUnsupported
	}
	events, err := ws.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	src := lifecycleadapter.NewSource(events)
	if err := src.Start(ctx); err != nil {
		return err
	}
	for e := range src.Events() {
		ev, ok := e.(core.Event)
		if !ok {
			continue
		}
		phase, err := c.Identity.Reload(ctx)
		if err != nil {
			c.logger.Warn("failed to reload session", "event", ev.String(), "error", err)
			continue
		}
		if fn != nil {
			fn(ev, phase)
		}
	}
	return nil
}

// Close releases store connections.
func (c *Client) Close() error {
	var errs []error
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
