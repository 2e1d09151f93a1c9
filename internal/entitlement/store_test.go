package entitlement

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"thumbpress/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.json")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestCreateAuthKeyShapeAndStats(t *testing.T) {
	store := newTestStore(t)

	key, err := store.CreateAuthKey(3600)
	if err != nil {
		t.Fatalf("CreateAuthKey: %v", err)
	}
	if !LooksLikeKey(key) {
		t.Fatalf("generated key %q does not match expected shape", key)
	}
	if got := store.GetStats().TotalKeysGenerated; got != 1 {
		t.Fatalf("TotalKeysGenerated = %d, want 1", got)
	}
}

func TestCreateAuthKeyRejectsNonPositiveDuration(t *testing.T) {
	store := newTestStore(t)
	for _, d := range []int64{0, -3600} {
		if _, err := store.CreateAuthKey(d); err == nil {
			t.Fatalf("CreateAuthKey(%d) should fail", d)
		}
	}
}

func TestKeyUniqueness(t *testing.T) {
	store := newTestStore(t)

	const n = 500
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key, err := store.CreateAuthKey(3600)
		if err != nil {
			t.Fatalf("CreateAuthKey: %v", err)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = struct{}{}
	}
}

func TestVerifyAndConsumeSingleUse(t *testing.T) {
	store := newTestStore(t)

	key, err := store.CreateAuthKey(86400)
	if err != nil {
		t.Fatalf("CreateAuthKey: %v", err)
	}

	duration, err := store.VerifyAndConsumeAuthKey(key, 100)
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if duration != 86400 {
		t.Fatalf("duration = %d, want 86400", duration)
	}

	if _, err := store.VerifyAndConsumeAuthKey(key, 200); !errors.Is(err, services.ErrKeyInvalid) {
		t.Fatalf("second redemption = %v, want ErrKeyInvalid", err)
	}
	if _, err := store.VerifyAndConsumeAuthKey("NEVEREXISTED", 200); !errors.Is(err, services.ErrKeyInvalid) {
		t.Fatalf("unknown key = %v, want ErrKeyInvalid", err)
	}

	// Redemption must not touch the keys-generated counter.
	if got := store.GetStats().TotalKeysGenerated; got != 1 {
		t.Fatalf("TotalKeysGenerated = %d, want 1", got)
	}
}

func TestConcurrentRedemptionExactlyOneWinner(t *testing.T) {
	store := newTestStore(t)

	key, err := store.CreateAuthKey(3600)
	if err != nil {
		t.Fatalf("CreateAuthKey: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := store.VerifyAndConsumeAuthKey(key, user)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, services.ErrKeyInvalid):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != attempts-1 {
		t.Fatalf("wins=%d losses=%d, want 1/%d", wins, losses, attempts-1)
	}
}

func TestSubscriptionStacking(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	// Fresh activation: window starts now, total users becomes 1.
	if err := store.ActivateSubscription(7, 3600); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	sub, ok := store.GetSubscription(7)
	if !ok {
		t.Fatal("subscription missing")
	}
	if !sub.ExpiresAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("expiry = %v, want %v", sub.ExpiresAt, base.Add(time.Hour))
	}
	if got := store.GetStats().TotalUsers; got != 1 {
		t.Fatalf("TotalUsers = %d, want 1", got)
	}

	// Extension while active stacks onto the existing expiry.
	now = base.Add(30 * time.Minute)
	if err := store.ActivateSubscription(7, 3600); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	sub, _ = store.GetSubscription(7)
	if !sub.ExpiresAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("stacked expiry = %v, want %v", sub.ExpiresAt, base.Add(2*time.Hour))
	}
	if got := store.GetStats().TotalUsers; got != 1 {
		t.Fatalf("TotalUsers after extension = %d, want 1", got)
	}

	// Extension after expiry restarts the window from now.
	now = base.Add(72 * time.Hour)
	if err := store.ActivateSubscription(7, 3600); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	sub, _ = store.GetSubscription(7)
	if !sub.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("restarted expiry = %v, want %v", sub.ExpiresAt, now.Add(time.Hour))
	}
}

func TestHasActiveSubscriptionBoundary(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	if store.HasActiveSubscription(9) {
		t.Fatal("user without subscription reported active")
	}
	if err := store.ActivateSubscription(9, 3600); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	if !store.HasActiveSubscription(9) {
		t.Fatal("freshly activated subscription reported inactive")
	}

	// Expiry is a strict upper bound: exactly at expiry is inactive.
	now = base.Add(time.Hour)
	if store.HasActiveSubscription(9) {
		t.Fatal("subscription at exact expiry must be inactive")
	}
}

func TestIncrementVideosProcessed(t *testing.T) {
	store := newTestStore(t)

	// No subscription row: no-op, including the global counter.
	if err := store.IncrementVideosProcessed(5); err != nil {
		t.Fatalf("IncrementVideosProcessed: %v", err)
	}
	if got := store.GetStats().TotalVideos; got != 0 {
		t.Fatalf("TotalVideos = %d, want 0", got)
	}

	if err := store.ActivateSubscription(5, 3600); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	if err := store.IncrementVideosProcessed(5); err != nil {
		t.Fatalf("IncrementVideosProcessed: %v", err)
	}
	sub, _ := store.GetSubscription(5)
	if sub.VideosProcessed != 1 {
		t.Fatalf("VideosProcessed = %d, want 1", sub.VideosProcessed)
	}
	if got := store.GetStats().TotalVideos; got != 1 {
		t.Fatalf("TotalVideos = %d, want 1", got)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key, err := store.CreateAuthKey(86400)
	if err != nil {
		t.Fatalf("CreateAuthKey: %v", err)
	}
	if _, err := store.VerifyAndConsumeAuthKey(key, 11); err != nil {
		t.Fatalf("VerifyAndConsumeAuthKey: %v", err)
	}
	if err := store.ActivateSubscription(11, 86400); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.VerifyAndConsumeAuthKey(key, 12); !errors.Is(err, services.ErrKeyInvalid) {
		t.Fatalf("consumed key redeemable after reopen: %v", err)
	}
	if !reopened.HasActiveSubscription(11) {
		t.Fatal("subscription lost across reopen")
	}
	keys := reopened.ListKeys()
	if len(keys) != 1 || !keys[0].Used || keys[0].UsedBy == nil || *keys[0].UsedBy != 11 {
		t.Fatalf("unexpected key summary after reopen: %+v", keys)
	}
}

func TestOpenToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open should tolerate corrupt file: %v", err)
	}
	if got := store.GetStats(); got != (Stats{}) {
		t.Fatalf("expected empty stats, got %+v", got)
	}
	// The store must be writable again after falling back.
	if _, err := store.CreateAuthKey(3600); err != nil {
		t.Fatalf("CreateAuthKey after fallback: %v", err)
	}
}

func TestLooksLikeKey(t *testing.T) {
	cases := map[string]bool{
		"ABCD1234WXYZ": true,
		"ABCD1234WXY":  false,
		"abcd1234wxyz": false,
		"ABCD1234WXY!": false,
		"":             false,
	}
	for input, want := range cases {
		if got := LooksLikeKey(input); got != want {
			t.Errorf("LooksLikeKey(%q) = %v, want %v", input, got, want)
		}
	}
}
