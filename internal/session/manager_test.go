package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"thumbpress/internal/services"
	"thumbpress/internal/session"
)

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestTakeWithoutStagingSignalsNotStaged(t *testing.T) {
	mgr := session.NewManager(nil)

	_, err := mgr.TakeThumbnailForProcessing(1)
	if !errors.Is(err, services.ErrThumbnailNotStaged) {
		t.Fatalf("err = %v, want ErrThumbnailNotStaged", err)
	}
}

func TestStageReplaceRemovesOldArtifact(t *testing.T) {
	dir := t.TempDir()
	mgr := session.NewManager(nil)

	first := writeArtifact(t, dir, "a.jpg")
	second := writeArtifact(t, dir, "b.jpg")

	if err := mgr.StageThumbnail(1, first); err != nil {
		t.Fatalf("StageThumbnail: %v", err)
	}
	if err := mgr.StageThumbnail(1, second); err != nil {
		t.Fatalf("StageThumbnail replace: %v", err)
	}

	if _, err := os.Stat(first); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("replaced artifact still on disk: %v", err)
	}
	got, err := mgr.TakeThumbnailForProcessing(1)
	if err != nil {
		t.Fatalf("TakeThumbnailForProcessing: %v", err)
	}
	if got != second {
		t.Fatalf("staged = %q, want %q", got, second)
	}
}

func TestTakeDoesNotConsume(t *testing.T) {
	dir := t.TempDir()
	mgr := session.NewManager(nil)
	path := writeArtifact(t, dir, "thumb.jpg")

	if err := mgr.StageThumbnail(1, path); err != nil {
		t.Fatalf("StageThumbnail: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := mgr.TakeThumbnailForProcessing(1)
		if err != nil || got != path {
			t.Fatalf("take %d: got %q err %v", i, got, err)
		}
	}
}

func TestCancelRemovesArtifactAndResets(t *testing.T) {
	dir := t.TempDir()
	mgr := session.NewManager(nil)
	path := writeArtifact(t, dir, "thumb.jpg")

	if err := mgr.StageThumbnail(1, path); err != nil {
		t.Fatalf("StageThumbnail: %v", err)
	}
	if err := mgr.Cancel(1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("cancelled artifact still on disk")
	}
	if mgr.HasStaged(1) {
		t.Fatal("user still staged after cancel")
	}
	// Cancelling an idle user is a no-op.
	if err := mgr.Cancel(1); err != nil {
		t.Fatalf("Cancel idle: %v", err)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	dir := t.TempDir()
	mgr := session.NewManager(nil)

	a := writeArtifact(t, dir, "a.jpg")
	b := writeArtifact(t, dir, "b.jpg")
	if err := mgr.StageThumbnail(1, a); err != nil {
		t.Fatalf("stage user 1: %v", err)
	}
	if err := mgr.StageThumbnail(2, b); err != nil {
		t.Fatalf("stage user 2: %v", err)
	}
	if err := mgr.Cancel(1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got, err := mgr.TakeThumbnailForProcessing(2); err != nil || got != b {
		t.Fatalf("user 2 staging disturbed: %q %v", got, err)
	}
}
