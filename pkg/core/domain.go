package core

import (
	"fmt"
	"time"
)

// EventType represents the type of change to the persisted session.
type EventType string

const (
	EventSessionSaved   EventType = "SESSION_SAVED"
	EventSessionCleared EventType = "SESSION_CLEARED"
)

// Event represents a change to the persisted session observed by a store.
type Event struct {
	Type      EventType
	Key       string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s @ %s", e.Type, e.Key, time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339))
}
