package core_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/orbit/pkg/core"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"empty", "", true},
		{"blank", "   \n\t", true},
		{"single char", "a", false},
		{"exactly 280", strings.Repeat("x", 280), false},
		{"281", strings.Repeat("x", 281), true},
		{"280 multibyte", strings.Repeat("é", 280), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.ValidateMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	a := core.Identity{Handle: "alice-1", DisplayName: "Alice", Color: "#e91e63"}
	b := core.NewIdentity("alice-1")
	if !a.Equal(b) {
		t.Error("identities with the same handle must be equal")
	}
	if core.NoIdentity.Equal(a) || !core.NoIdentity.IsZero() {
		t.Error("NoIdentity must be the zero sentinel")
	}

	long := core.NewIdentity("rrkah-fqaaa-aaaaa-aaaaq-cai-xyz")
	if got := long.Short(); got != "rrkah-fq...-cai-xyz" {
		t.Errorf("Short() = %q", got)
	}
	if got := a.Label(); got != "Alice" {
		t.Errorf("Label() = %q", got)
	}
}

func TestLookupSimulated(t *testing.T) {
	if id, ok := core.LookupSimulated("BOB"); !ok || id.Handle != "bob-2" {
		t.Errorf("lookup by name failed: %v %v", id, ok)
	}
	if _, ok := core.LookupSimulated("mallory"); ok {
		t.Error("unexpected simulated identity")
	}
	ids := core.SimulatedIdentities()
	ids[0].Handle = "changed"
	if core.SimulatedIdentities()[0].Handle != "alice-1" {
		t.Error("SimulatedIdentities leaked the menu")
	}
}
