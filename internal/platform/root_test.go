package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	// /tmp/
	//   project/ (orbit.yaml)
	//     subdir/
	//       nested/
	//   dotdir/ (.orbit)
	//   empty/

	baseDir := t.TempDir()
	projectDir := filepath.Join(baseDir, "project")
	subDir := filepath.Join(projectDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	dotDir := filepath.Join(baseDir, "dotdir")
	emptyDir := filepath.Join(baseDir, "empty")

	for _, d := range []string{nestedDir, emptyDir, filepath.Join(dotDir, ".orbit")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(projectDir, ConfigFileName), []byte("environment: local\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: projectDir, wantRoot: projectDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: projectDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: projectDir},
		{name: "Dot Directory Marker", startPath: dotDir, wantRoot: dotDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("FindRoot() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != "" && filepath.Clean(got) != filepath.Clean(tt.wantRoot) {
				t.Errorf("FindRoot() = %v, want %v", got, tt.wantRoot)
			}
		})
	}
}

func TestResolveSessionDir(t *testing.T) {
	inTemp := filepath.Join(os.TempDir(), "orbit-test-session")

	if got := ResolveSessionDir("/home/me/.config/orbit", false); got != "/home/me/.config/orbit" {
		t.Errorf("expected path untouched, got %s", got)
	}
	if got := ResolveSessionDir(inTemp, true); got != inTemp {
		t.Errorf("expected temp path kept, got %s", got)
	}
	want := filepath.Join(os.TempDir(), "orbit-dev", "orbit")
	if got := ResolveSessionDir("/home/me/.config/orbit", true); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if !IsDevRun() {
		t.Error("tests run from a .test binary and should count as dev runs")
	}
}
