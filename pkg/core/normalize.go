package core

// Normalize rewrites anonymous authorship to the active simulated identity.
//
// Only simulated sessions are affected; for delegated sessions (or no session)
// the batch is returned unchanged. Every anonymous dweet is attributed to the
// identity active at fetch time, even if it was written under a different
// simulated identity earlier. The input slice is never modified.
func Normalize(s *Session, batch []Dweet) []Dweet {
	out := make([]Dweet, len(batch))
	copy(out, batch)
	if s == nil || !s.Simulated() || s.Identity.IsZero() {
		return out
	}
	for i := range out {
		if out[i].Author.IsAnonymous() {
			out[i].Author = s.Identity
		}
	}
	return out
}

// Owns reports whether the (normalized) dweet belongs to the session.
func Owns(s *Session, d Dweet) bool {
	if s == nil || s.Identity.IsZero() {
		return false
	}
	return d.Author.Equal(s.Identity)
}

// FilterByAuthor keeps the dweets written by author.
func FilterByAuthor(batch []Dweet, author Identity) []Dweet {
	out := make([]Dweet, 0, len(batch))
	for _, d := range batch {
		if d.Author.Equal(author) {
			out = append(out, d)
		}
	}
	return out
}
