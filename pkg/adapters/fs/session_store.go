// Package fs persists the session record as a single file.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// Config holds the configuration for the file session store.
type Config struct {
	// Dir holds the session file. Created on first save.
	Dir string
	// Format is "json" (default) or "yaml".
	Format string
	Logger *slog.Logger
	// ErrorHandler receives asynchronous watcher errors.
	ErrorHandler func(error)
}

// SessionStore keeps the session in <Dir>/orbit_auth.<ext>.
type SessionStore struct {
	config Config
	codec  Codec
	path   string
	now    func() time.Time

	mu            sync.RWMutex
	watcherActive bool
	lastEvent     *core.Event
}

// NewSessionStore creates a file-backed store.
func NewSessionStore(config Config) *SessionStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	codec := CodecFor(config.Format)
	return &SessionStore{
		config: config,
		codec:  codec,
		path:   filepath.Join(config.Dir, core.SessionKey+codec.Ext()),
		now:    time.Now,
	}
}

// Path returns the session file location.
func (s *SessionStore) Path() string {
	return s.path
}

// Load reads the session file. A missing file is an absent session; an
// unreadable one is removed and also reported as absent.
func (s *SessionStore) Load(ctx context.Context) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	sess, err := s.decode(data)
	if err != nil {
		s.config.Logger.Warn("discarding malformed session file", "path", s.path, "error", err)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.config.Logger.Warn("failed to remove malformed session file", "path", s.path, "error", rmErr)
		}
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) decode(data []byte) (core.Session, error) {
	rec, err := s.codec.Decode(data)
	if err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", core.ErrMalformedPersistedSession, err)
	}
	return rec.Session()
}

// Save writes the session atomically with owner-only permissions.
func (s *SessionStore) Save(ctx context.Context, sess core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.codec.Encode(core.NewRecord(sess, s.now()))
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing an absent session succeeds.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

var (
	_ core.SessionStore   = (*SessionStore)(nil)
	_ core.WatchableStore = (*SessionStore)(nil)
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
