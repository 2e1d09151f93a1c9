// Package entitlement persists auth keys, per-user subscription windows, and
// aggregate counters in a single JSON document.
//
// Every mutating operation holds the store mutex, applies the change in
// memory, and rewrites the backing file via a temp-file rename before
// returning. A missing or corrupt file at open time degrades to an empty
// store rather than failing.
package entitlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"thumbpress/internal/logging"
	"thumbpress/internal/services"
)

// AuthKey is a single-use code granting a fixed entitlement duration. Consumed
// keys are retained for audit; they are never deleted.
type AuthKey struct {
	DurationSeconds int64      `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	Used            bool       `json:"used"`
	UsedBy          *int64     `json:"used_by"`
	UsedAt          *time.Time `json:"used_at"`
}

// Subscription is a per-user entitlement window with stacking extension
// semantics.
type Subscription struct {
	ExpiresAt       time.Time `json:"expires_at"`
	ActivatedAt     time.Time `json:"activated_at"`
	VideosProcessed int64     `json:"videos_processed"`
}

// Stats holds process-wide aggregate counters. All values are monotonic.
type Stats struct {
	TotalUsers         int64 `json:"total_users"`
	TotalVideos        int64 `json:"total_videos"`
	TotalKeysGenerated int64 `json:"total_keys_generated"`
}

type document struct {
	AuthKeys      map[string]AuthKey      `json:"auth_keys"`
	Subscriptions map[string]Subscription `json:"subscriptions"`
	Stats         Stats                   `json:"stats"`
}

func emptyDocument() document {
	return document{
		AuthKeys:      make(map[string]AuthKey),
		Subscriptions: make(map[string]Subscription),
	}
}

// Store provides thread-safe access to entitlement state. All mutations are
// serialized by a single mutex, which makes key consumption linearizable.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	doc document

	now func() time.Time
}

// Open loads the store from path, falling back to an empty document when the
// file is absent or malformed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("entitlement store path required")
	}
	logger = logging.NewComponentLogger(logger, "entitlement")

	s := &Store{
		path:   path,
		logger: logger,
		doc:    emptyDocument(),
		now:    time.Now,
	}

	if err := s.load(); err != nil {
		logger.Warn("failed to load entitlement database, starting empty",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "entitlement_load_failed"),
			logging.String(logging.FieldErrorHint, "previous keys and subscriptions are not visible"))
		s.doc = emptyDocument()
	}

	return s, nil
}

// CreateAuthKey generates a unique key valid for the given duration, persists
// it unconsumed, and increments the keys-generated counter.
func (s *Store) CreateAuthKey(durationSeconds int64) (string, error) {
	if durationSeconds <= 0 {
		return "", fmt.Errorf("auth key duration must be positive, got %d", durationSeconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var key string
	for {
		generated, err := generateKey()
		if err != nil {
			return "", fmt.Errorf("generate auth key: %w", err)
		}
		if _, exists := s.doc.AuthKeys[generated]; !exists {
			key = generated
			break
		}
	}

	s.doc.AuthKeys[key] = AuthKey{
		DurationSeconds: durationSeconds,
		CreatedAt:       s.now(),
	}
	s.doc.Stats.TotalKeysGenerated++

	if err := s.save(); err != nil {
		// Roll back so a failed persist is not observable in memory.
		delete(s.doc.AuthKeys, key)
		s.doc.Stats.TotalKeysGenerated--
		return "", err
	}

	s.logger.Info("auth key generated",
		logging.Int64("duration_seconds", durationSeconds),
		logging.String(logging.FieldEventType, "auth_key_created"))
	return key, nil
}

// VerifyAndConsumeAuthKey atomically checks that key exists and is unconsumed,
// then marks it consumed by userID. Exactly one caller can ever succeed for a
// given key. Both "never existed" and "already used" yield ErrKeyInvalid.
func (s *Store) VerifyAndConsumeAuthKey(key string, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.doc.AuthKeys[key]
	if !exists || record.Used {
		return 0, services.Wrap(services.ErrKeyInvalid, "entitlement", "redeem", "", nil)
	}

	usedAt := s.now()
	record.Used = true
	record.UsedBy = &userID
	record.UsedAt = &usedAt
	s.doc.AuthKeys[key] = record

	if err := s.save(); err != nil {
		record.Used = false
		record.UsedBy = nil
		record.UsedAt = nil
		s.doc.AuthKeys[key] = record
		return 0, err
	}

	s.logger.Info("auth key consumed",
		logging.Int64(logging.FieldUserID, userID),
		logging.String(logging.FieldEventType, "auth_key_consumed"))
	return record.DurationSeconds, nil
}

// ActivateSubscription extends the user's entitlement window. A still-active
// subscription stacks the duration onto the current expiry; an expired or
// absent one starts a fresh window from now. The first-ever activation for a
// user increments the total-users counter exactly once.
func (s *Store) ActivateSubscription(userID int64, durationSeconds int64) error {
	if durationSeconds <= 0 {
		return fmt.Errorf("subscription duration must be positive, got %d", durationSeconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := userKey(userID)
	now := s.now()

	prev, exists := s.doc.Subscriptions[id]
	var expires time.Time
	switch {
	case exists && prev.ExpiresAt.After(now):
		expires = prev.ExpiresAt.Add(time.Duration(durationSeconds) * time.Second)
	default:
		expires = now.Add(time.Duration(durationSeconds) * time.Second)
	}

	next := Subscription{
		ExpiresAt:       expires,
		ActivatedAt:     now,
		VideosProcessed: prev.VideosProcessed,
	}
	s.doc.Subscriptions[id] = next
	if !exists {
		s.doc.Stats.TotalUsers++
	}

	if err := s.save(); err != nil {
		if exists {
			s.doc.Subscriptions[id] = prev
		} else {
			delete(s.doc.Subscriptions, id)
			s.doc.Stats.TotalUsers--
		}
		return err
	}

	s.logger.Info("subscription activated",
		logging.Int64(logging.FieldUserID, userID),
		logging.Int64("duration_seconds", durationSeconds),
		logging.String("expires_at", expires.Format(time.RFC3339)),
		logging.String(logging.FieldEventType, "subscription_activated"))
	return nil
}

// GetSubscription returns the user's subscription, if any.
func (s *Store) GetSubscription(userID int64) (Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.doc.Subscriptions[userKey(userID)]
	return sub, ok
}

// HasActiveSubscription reports whether the user's subscription expiry is
// strictly in the future.
func (s *Store) HasActiveSubscription(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.doc.Subscriptions[userKey(userID)]
	return ok && sub.ExpiresAt.After(s.now())
}

// IncrementVideosProcessed bumps the per-user and global processed counters.
// It is a no-op for users without a subscription row.
func (s *Store) IncrementVideosProcessed(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := userKey(userID)
	prev, ok := s.doc.Subscriptions[id]
	if !ok {
		return nil
	}

	next := prev
	next.VideosProcessed++
	s.doc.Subscriptions[id] = next
	s.doc.Stats.TotalVideos++

	if err := s.save(); err != nil {
		s.doc.Subscriptions[id] = prev
		s.doc.Stats.TotalVideos--
		return err
	}
	return nil
}

// GetStats returns a snapshot of the aggregate counters.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Stats
}

// KeySummary describes one generated key for administrative listings.
type KeySummary struct {
	Key             string
	DurationSeconds int64
	CreatedAt       time.Time
	Used            bool
	UsedBy          *int64
	UsedAt          *time.Time
}

// ListKeys returns all generated keys sorted newest first.
func (s *Store) ListKeys() []KeySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]KeySummary, 0, len(s.doc.AuthKeys))
	for key, record := range s.doc.AuthKeys {
		keys = append(keys, KeySummary{
			Key:             key,
			DurationSeconds: record.DurationSeconds,
			CreatedAt:       record.CreatedAt,
			Used:            record.Used,
			UsedBy:          record.UsedBy,
			UsedAt:          record.UsedAt,
		})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read database: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse database: %w", err)
	}
	if doc.AuthKeys == nil {
		doc.AuthKeys = make(map[string]AuthKey)
	}
	if doc.Subscriptions == nil {
		doc.Subscriptions = make(map[string]Subscription)
	}
	s.doc = doc
	return nil
}

// save writes the document to disk atomically. Callers must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal database: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp database: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp database: %w", err)
	}
	return nil
}
