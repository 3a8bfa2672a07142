// Package memory keeps the persisted session in process memory.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// SessionStore holds the encoded session record under core.SessionKey.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	now     func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string][]byte),
		now:     time.Now,
	}
}

func (s *SessionStore) Load(ctx context.Context) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.records[core.SessionKey]
	if !ok {
		return nil, nil
	}
	sess, err := core.DecodeRecord(data)
	if err != nil {
		if errors.Is(err, core.ErrMalformedPersistedSession) {
			delete(s.records, core.SessionKey)
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess core.Session) error {
	data, err := core.EncodeRecord(sess, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[core.SessionKey] = data
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, core.SessionKey)
	return nil
}

// SetRaw stores raw bytes under the session key, bypassing encoding.
func (s *SessionStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[core.SessionKey] = append([]byte(nil), data...)
}

// Raw returns the stored bytes, if any.
func (s *SessionStore) Raw() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[core.SessionKey]
	return data, ok
}

var _ core.SessionStore = (*SessionStore)(nil)
