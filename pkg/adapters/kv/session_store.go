// Package kv persists the session record in an embedded pebble database,
// for hosts that already keep client state in one.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"github.com/aretw0/orbit/pkg/core"
)

const keyPrefix = "session:"

// SessionStore keeps the encoded session under "session:orbit_auth".
type SessionStore struct {
	mu     sync.Mutex
	db     *pebble.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path.
func Open(path string, logger *slog.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	return &SessionStore{db: db, path: path, logger: logger, now: time.Now}, nil
}

func key() []byte {
	return []byte(keyPrefix + core.SessionKey)
}

// Load returns the stored session, discarding a malformed record.
func (s *SessionStore) Load(ctx context.Context) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, closer, err := s.db.Get(key())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	data := make([]byte, len(v))
	copy(data, v)
	_ = closer.Close()

	sess, err := core.DecodeRecord(data)
	if err != nil {
		s.logger.Warn("discarding malformed session record", "path", s.path, "error", err)
		if delErr := s.db.Delete(key(), pebble.Sync); delErr != nil {
			s.logger.Warn("failed to delete malformed session record", "error", delErr)
		}
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := core.EncodeRecord(sess, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(key(), data, pebble.Sync); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Delete(key(), pebble.Sync); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SetRaw stores data verbatim under the session key.
func (s *SessionStore) SetRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Set(key(), data, pebble.Sync)
}

// Close closes the database.
func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ core.SessionStore = (*SessionStore)(nil)
