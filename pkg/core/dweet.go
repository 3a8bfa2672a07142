package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the maximum dweet length in characters.
const MaxMessageLength = 280

// Dweet is a single timeline post. The content service owns it; the client
// only ever holds a read-through copy.
type Dweet struct {
	ID        uint64    `json:"id"`
	Author    Identity  `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateMessage enforces 1..280 characters, non-blank after trimming.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return InvalidInput("message must not be empty")
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return InvalidInput("message exceeds 280 characters")
	}
	return nil
}
