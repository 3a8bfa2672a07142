package core

import "strings"

// Mode distinguishes real delegated logins from local stand-ins.
type Mode string

const (
	ModeDelegated Mode = "delegated"
	ModeSimulated Mode = "simulated"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDelegated || m == ModeSimulated
}

// Session is the active identity of the client.
type Session struct {
	Identity  Identity
	Mode      Mode
	Persisted bool
}

// Simulated reports whether the session is a local stand-in.
func (s Session) Simulated() bool {
	return s.Mode == ModeSimulated
}

// Environment selects production or local identity behaviour.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvLocal      Environment = "local"
)

// IsProduction treats "production" and the "ic" network name as production.
func (e Environment) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(string(e))) {
	case "production", "prod", "ic":
		return true
	}
	return false
}
