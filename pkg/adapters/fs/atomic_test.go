package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Creates New File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "orbit_auth.json")
		content := []byte(`{"identityHandle":"alice-1"}`)

		if err := WriteFileAtomic(filename, content, 0o600); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("Expected %q, got %q", content, got)
		}
	})

	t.Run("Overwrites Existing File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "orbit_auth.json")
		if err := os.WriteFile(filename, []byte("initial"), 0o600); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if err := WriteFileAtomic(filename, []byte("overwritten"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}

		got, _ := os.ReadFile(filename)
		if string(got) != "overwritten" {
			t.Errorf("Expected 'overwritten', got %q", got)
		}
	})

	t.Run("Owner Only Permissions", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not enforced on windows")
		}
		filename := filepath.Join(t.TempDir(), "orbit_auth.json")
		if err := WriteFileAtomic(filename, []byte("secret"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}
		info, err := os.Stat(filename)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("Expected 0600, got %v", perm)
		}
	})

	t.Run("Creates Missing Directory", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "nested", "orbit", "orbit_auth.json")
		if err := WriteFileAtomic(filename, []byte("ok"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}
	})

	t.Run("Leaves No Temp Files", func(t *testing.T) {
		dir := t.TempDir()
		if err := WriteFileAtomic(filepath.Join(dir, "orbit_auth.json"), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), TempFilePrefix) {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})
}
