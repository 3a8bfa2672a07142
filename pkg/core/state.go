package core

import "sync"

// State is the single owned client state: the active session and the
// timeline cache. It is shared by reference between the session manager
// and the sync engine.
//
// Timeline fetches are sequenced: BeginFetch hands out increasing ids and
// ApplyTimeline refuses a response older than the newest one applied.
type State struct {
	mu       sync.RWMutex
	session  *Session
	timeline []Dweet
	nextSeq  uint64
	applied  uint64
}

// NewState returns an empty state with no session.
func NewState() *State {
	return &State{}
}

// Session returns a copy of the active session.
func (s *State) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Identity returns the active identity or NoIdentity.
func (s *State) Identity() Identity {
	sess, ok := s.Session()
	if !ok {
		return NoIdentity
	}
	return sess.Identity
}

// SetSession replaces the active session. A change of identity drops the
// timeline cache and invalidates fetches still in flight, since
// normalization depends on the identity.
func (s *State) SetSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || !s.session.Identity.Equal(sess.Identity) || s.session.Mode != sess.Mode {
		s.timeline = nil
		s.applied = s.nextSeq
	}
	s.session = &sess
}

// ClearSession drops the session and the cache.
func (s *State) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.timeline = nil
	s.applied = s.nextSeq
}

// Timeline returns a copy of the cached timeline.
func (s *State) Timeline() []Dweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Dweet, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// BeginFetch reserves the next request id.
func (s *State) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// ApplyTimeline replaces the cache with batch unless a newer response has
// already been applied. It reports whether the batch was applied.
func (s *State) ApplyTimeline(seq uint64, batch []Dweet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	s.timeline = make([]Dweet, len(batch))
	copy(s.timeline, batch)
	return true
}

// Sequence reports the last issued and last applied request ids.
func (s *State) Sequence() (issued, applied uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq, s.applied
}
