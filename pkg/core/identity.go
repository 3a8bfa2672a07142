package core

import "strings"

// AnonymousHandle is the handle the content service reports for callers
// without a delegated identity.
const AnonymousHandle = "2vxsx-fae"

// Identity is an opaque, durable caller handle.
// DisplayName and Color are only used by simulated identities.
// Two identities are the same caller iff their handles are equal; compare
// with Equal, never with ==.
type Identity struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Color       string `json:"color,omitempty"`
}

// NoIdentity is the sentinel returned when no session is active.
var NoIdentity = Identity{}

// NewIdentity builds an identity from a bare handle.
func NewIdentity(handle string) Identity {
	return Identity{Handle: strings.TrimSpace(handle)}
}

// Equal compares handles only.
func (i Identity) Equal(other Identity) bool {
	return i.Handle == other.Handle
}

// IsZero reports whether i is the NoIdentity sentinel.
func (i Identity) IsZero() bool {
	return i.Handle == ""
}

// IsAnonymous reports whether the handle matches the anonymous placeholder.
func (i Identity) IsAnonymous() bool {
	return strings.HasPrefix(i.Handle, AnonymousHandle)
}

func (i Identity) String() string {
	return i.Handle
}

// Short abbreviates long handles as "abcdefgh...stuvwxyz".
func (i Identity) Short() string {
	if len(i.Handle) <= 20 {
		return i.Handle
	}
	return i.Handle[:8] + "..." + i.Handle[len(i.Handle)-8:]
}

// Label prefers the display name.
func (i Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Short()
}
