package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDevRun reports whether the process runs via `go run` or `go test`,
// both of which build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// DefaultSessionDir is the per-user location of the session file.
func DefaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "orbit")
	}
	return ".orbit"
}

// ResolveSessionDir keeps development runs away from the real session.
// With forceTemp set, paths outside the system temp dir are re-rooted
// under <tmp>/orbit-dev.
func ResolveSessionDir(userDir string, forceTemp bool) string {
	if userDir == "" {
		userDir = DefaultSessionDir()
	}
	if !forceTemp {
		return userDir
	}

	clean := filepath.Clean(userDir)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := filepath.Base(clean)
	if name == "." || name == string(os.PathSeparator) {
		name = "default"
	}
	return filepath.Join(os.TempDir(), "orbit-dev", name)
}
