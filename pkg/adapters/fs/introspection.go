package fs

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/orbit/pkg/core"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string      `json:"path"`
	Format        string      `json:"format"`
	Present       bool        `json:"present"`
	WatcherActive bool        `json:"watcher_active"`
	LastEvent     *core.Event `json:"last_event,omitempty"`
}

// State implements introspection.Introspectable.
func (s *SessionStore) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreState{
		Path:          s.path,
		Format:        s.codec.Ext(),
		Present:       fileExists(s.path),
		WatcherActive: s.watcherActive,
		LastEvent:     s.lastEvent,
	}
}

// ComponentType implements introspection.Component.
func (s *SessionStore) ComponentType() string {
	return "session-store"
}

var _ introspection.Introspectable = (*SessionStore)(nil)
var _ introspection.Component = (*SessionStore)(nil)

func (s *SessionStore) setWatcherActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherActive = active
}

func (s *SessionStore) recordEvent(e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvent = &e
}
