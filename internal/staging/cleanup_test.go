package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCleanExpiredRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "video_1_abc_old.mp4")
	fresh := filepath.Join(dir, "thumb_1_def.jpg")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanExpired(dir, time.Hour, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want only %s", result.Removed, old)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should survive: %v", err)
	}
}

func TestCleanExpiredSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "keep")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(sub, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanExpired(dir, time.Hour, nil)
	if len(result.Removed) != 0 {
		t.Fatalf("directories must not be removed: %v", result.Removed)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Fatalf("directory removed: %v", err)
	}
}

func TestCleanExpiredMissingDirIsQuiet(t *testing.T) {
	result := CleanExpired(filepath.Join(t.TempDir(), "nope"), time.Hour, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("missing dir should be a no-op, got %+v", result)
	}
}

func TestWorkspacePathsAreUnique(t *testing.T) {
	ws := NewWorkspace("/tmp/dl", "/tmp/out")

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		for _, p := range []string{
			ws.ThumbnailPath(1),
			ws.VideoPath(1, "clip.mp4"),
			ws.OutputPath(),
			ws.NormalizedImagePath(),
		} {
			if _, dup := seen[p]; dup {
				t.Fatalf("duplicate artifact path: %s", p)
			}
			seen[p] = struct{}{}
		}
	}
}

func TestVideoPathSanitizesOriginalName(t *testing.T) {
	ws := NewWorkspace("/tmp/dl", "/tmp/out")

	path := ws.VideoPath(3, "../../etc/passwd")
	if strings.Contains(path, "..") {
		t.Fatalf("path traversal survived sanitization: %s", path)
	}
	if !strings.HasPrefix(path, "/tmp/dl/") {
		t.Fatalf("artifact escaped downloads dir: %s", path)
	}

	empty := ws.VideoPath(3, "")
	if !strings.HasSuffix(empty, "video.mp4") {
		t.Fatalf("empty name should fall back to video.mp4: %s", empty)
	}
}
