package core

import "strings"

// simulatedIdentities is the fixed menu offered outside production.
var simulatedIdentities = []Identity{
	{Handle: "alice-1", DisplayName: "Alice", Color: "#e91e63"},
	{Handle: "bob-2", DisplayName: "Bob", Color: "#2196f3"},
	{Handle: "carol-3", DisplayName: "Carol", Color: "#4caf50"},
	{Handle: "dave-4", DisplayName: "Dave", Color: "#ff9800"},
}

// SimulatedIdentities returns a copy of the simulated identity menu.
func SimulatedIdentities() []Identity {
	out := make([]Identity, len(simulatedIdentities))
	copy(out, simulatedIdentities)
	return out
}

// LookupSimulated finds a simulated identity by handle or display name.
func LookupSimulated(key string) (Identity, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return NoIdentity, false
	}
	for _, id := range simulatedIdentities {
		if id.Handle == key || strings.EqualFold(id.DisplayName, key) {
			return id, true
		}
	}
	return NoIdentity, false
}
