package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"thumbpress/internal/config"
	"thumbpress/internal/deps"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Work directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass, got %q", result.Detail)
	}

	result = CheckDirectoryAccess("Work directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected missing directory to fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = CheckDirectoryAccess("Work directory", file)
	if result.Passed {
		t.Fatal("expected plain file to fail directory check")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()

	result := CheckFreeSpace("Space", dir, 1)
	if !result.Passed {
		t.Fatalf("expected 1-byte floor to pass, got %q", result.Detail)
	}

	// No filesystem offers this much space.
	result = CheckFreeSpace("Space", dir, 1<<62)
	if result.Passed {
		t.Fatal("expected absurd floor to fail")
	}
}

func TestRunAllReportsEveryPath(t *testing.T) {
	cfg := config.Default()
	work := t.TempDir()
	cfg.Paths.WorkDir = work
	cfg.Paths.LogDir = filepath.Join(work, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 checks, got %d: %#v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestPassed(t *testing.T) {
	ok := []Result{{Name: "a", Passed: true}}
	bad := []Result{{Name: "a", Passed: false}}
	available := []deps.Status{{Name: "FFmpeg", Available: true}}
	missingOptional := []deps.Status{{Name: "FFprobe", Available: false, Optional: true}}
	missingRequired := []deps.Status{{Name: "FFmpeg", Available: false}}

	if !Passed(ok, available) {
		t.Error("expected all-passing set to pass")
	}
	if !Passed(ok, missingOptional) {
		t.Error("missing optional binary must not fail preflight")
	}
	if Passed(bad, available) {
		t.Error("failed check must fail preflight")
	}
	if Passed(ok, missingRequired) {
		t.Error("missing required binary must fail preflight")
	}
}
