package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestRecordAndRecent(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Record(ctx, Entry{
		UserID:     42,
		VideoName:  "movie.mp4",
		OutputName: "output_ab12cd34.mp4",
		DurationMS: 1500,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := ledger.Record(ctx, Entry{
		UserID:     42,
		VideoName:  "clip.mkv",
		OutputName: "output_ef56ab78.mp4",
		Reencoded:  true,
		BackupURL:  "https://backup.example/clip",
		DurationMS: 9000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if second <= first {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", first, second)
	}

	entries, err := ledger.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second {
		t.Errorf("expected newest entry first, got id %d", entries[0].ID)
	}
	if !entries[0].Reencoded {
		t.Error("reencoded flag not round-tripped")
	}
	if entries[0].BackupURL != "https://backup.example/clip" {
		t.Errorf("backup url not round-tripped: %q", entries[0].BackupURL)
	}
	if entries[1].BackupURL != "" {
		t.Errorf("expected empty backup url, got %q", entries[1].BackupURL)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestForUserIsolation(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.Record(ctx, Entry{UserID: 1, VideoName: "a.mp4", OutputName: "out.mp4"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if _, err := ledger.Record(ctx, Entry{UserID: 2, VideoName: "b.mp4", OutputName: "out.mp4"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := ledger.ForUser(ctx, 1, 10)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries for user 1, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.UserID != 1 {
			t.Errorf("foreign entry leaked into user query: %#v", entry)
		}
	}

	count, err := ledger.CountForUser(ctx, 2)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 for user 2, got %d", count)
	}
}

func TestRecentLimit(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := ledger.Record(ctx, Entry{UserID: 9, VideoName: "v.mp4", OutputName: "o.mp4"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	entries, err := ledger.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(entries))
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	ledger, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ledger.Record(ctx, Entry{UserID: 7, VideoName: "v.mp4", OutputName: "o.mp4", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected persisted entry after reopen, got %d", len(entries))
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
