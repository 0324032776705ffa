package modelstore

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jobtrail/core/internal/pkg/aierr"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFindModelFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.gguf")
	writeFile(t, dir, "bad.gguf?download=true")
	writeFile(t, dir, "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatal(err)
	}

	svc := NewService(dir, nil, nil, zap.NewNop())
	files, err := svc.FindModelFiles()
	if err != nil {
		t.Fatalf("FindModelFiles failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
	byName := map[string]ModelFile{}
	for _, f := range files {
		byName[filepath.Base(f.Path)] = f
	}
	if f, ok := byName["good.gguf"]; !ok || !f.Valid {
		t.Errorf("good.gguf should be found and valid, got %+v", f)
	}
	if f, ok := byName["bad.gguf?download=true"]; !ok || f.Valid {
		t.Errorf("corrupted filename should be found but invalid, got %+v", f)
	}
}

func TestFindModelFilesMissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "nope"), nil, nil, zap.NewNop())
	files, err := svc.FindModelFiles()
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files, want 0", len(files))
	}
}

func TestValidateModelPath(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "model.gguf")
	corrupt := writeFile(t, dir, "model.gguf?download=true")

	svc := NewService(dir, nil, nil, zap.NewNop())

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid file", good, false},
		{"empty path", "", true},
		{"missing file", filepath.Join(dir, "absent.gguf"), true},
		{"directory", dir, true},
		{"corrupted name", corrupt, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateModelPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				if !aierr.Is(err, aierr.KindInvalidModelFile) {
					t.Errorf("error kind = %v, want invalid_model_file", aierr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCleanupInvalidModelFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "keep.gguf")
	bad1 := writeFile(t, dir, "a.gguf?download=true")
	bad2 := writeFile(t, dir, "b.gguf=1")

	svc := NewService(dir, nil, nil, zap.NewNop())
	removed, err := svc.CleanupInvalidModelFiles()
	if err != nil {
		t.Fatalf("CleanupInvalidModelFiles failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d files, want 2: %v", len(removed), removed)
	}
	for _, p := range []string{bad1, bad2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", p)
		}
	}
	if _, err := os.Stat(good); err != nil {
		t.Errorf("keep.gguf should survive cleanup: %v", err)
	}

	// Second run is a no-op.
	removed, err = svc.CleanupInvalidModelFiles()
	if err != nil {
		t.Fatalf("second cleanup failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("second cleanup removed %v, want nothing", removed)
	}
}
