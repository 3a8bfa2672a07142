package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionKey is the well-known key every session store persists under.
const SessionKey = "orbit_auth"

// Record is the serialized form of a persisted session.
type Record struct {
	IdentityHandle         string `json:"identityHandle" yaml:"identityHandle"`
	DisplayName            string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	DisplayColor           string `json:"displayColor,omitempty" yaml:"displayColor,omitempty"`
	Mode                   Mode   `json:"mode" yaml:"mode"`
	PersistedAtEpochMillis int64  `json:"persistedAtEpochMillis" yaml:"persistedAtEpochMillis"`
}

// NewRecord converts a session into its persisted form.
func NewRecord(s Session, now time.Time) Record {
	return Record{
		IdentityHandle:         s.Identity.Handle,
		DisplayName:            s.Identity.DisplayName,
		DisplayColor:           s.Identity.Color,
		Mode:                   s.Mode,
		PersistedAtEpochMillis: now.UnixMilli(),
	}
}

// Session validates the record and rebuilds the session it describes.
func (r Record) Session() (Session, error) {
	handle := strings.TrimSpace(r.IdentityHandle)
	if handle == "" {
		return Session{}, fmt.Errorf("%w: empty identity handle", ErrMalformedPersistedSession)
	}
	if !r.Mode.Valid() {
		return Session{}, fmt.Errorf("%w: unknown mode %q", ErrMalformedPersistedSession, r.Mode)
	}
	return Session{
		Identity: Identity{
			Handle:      handle,
			DisplayName: r.DisplayName,
			Color:       r.DisplayColor,
		},
		Mode:      r.Mode,
		Persisted: true,
	}, nil
}

// EncodeRecord encodes a session record as JSON.
func EncodeRecord(s Session, now time.Time) ([]byte, error) {
	data, err := json.Marshal(NewRecord(s, now))
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes a JSON session record.
// Every failure wraps ErrMalformedPersistedSession.
func DecodeRecord(data []byte) (Session, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformedPersistedSession, err)
	}
	return rec.Session()
}
