package core

import "context"

// ContentService is the remote store that owns every dweet.
type ContentService interface {
	ListDweets(ctx context.Context) ([]Dweet, error)
	ListDweetsByAuthor(ctx context.Context, author Identity) ([]Dweet, error)

	// PostDweet returns the dweet as stored, with its server-assigned id
	// and timestamp.
	PostDweet(ctx context.Context, message string) (Dweet, error)
	EditDweet(ctx context.Context, id uint64, message string) error
	DeleteDweet(ctx context.Context, id uint64) error
}

// FallbackLister is implemented by content services that expose an
// alternate route for listing dweets, used when the primary route fails
// transport or certificate verification.
type FallbackLister interface {
	ListDweetsFallback(ctx context.Context) ([]Dweet, error)
}

// LoginConfig is passed to the identity provider's interactive flow.
type LoginConfig struct {
	IdentityProviderURL string
}

// IdentityProvider is the delegated identity service.
type IdentityProvider interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	GetIdentity(ctx context.Context) (Identity, error)
	Login(ctx context.Context, cfg LoginConfig) error
	Logout(ctx context.Context) error
}

// SessionStore persists the chosen session under SessionKey.
//
// Load fails soft: an unreadable record is removed and reported as absent
// (nil, nil). Only failures of the storage backend itself are returned.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// WatchableStore is implemented by stores that can report external changes
// to the persisted session.
type WatchableStore interface {
	Watch(ctx context.Context) (<-chan Event, error)
}
