// Package session tracks the transient per-user staged-thumbnail state
// between image upload and video upload. State is held in memory and resets
// on restart; the backing artifact files live in the staging workspace.
package session

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"thumbpress/internal/logging"
	"thumbpress/internal/services"
)

// Manager owns staged thumbnail artifacts. It holds no entitlement logic;
// callers gate staging on subscription checks. All transitions are atomic per
// manager, which covers concurrent events for a single user.
type Manager struct {
	logger *slog.Logger

	mu     sync.Mutex
	staged map[int64]string // userID -> staged thumbnail path
}

// NewManager constructs an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logging.NewComponentLogger(logger, "session"),
		staged: make(map[int64]string),
	}
}

// StageThumbnail records artifactPath as the user's staged thumbnail. Any
// previously staged artifact is removed from disk first so repeated image
// uploads never leak files.
func (m *Manager) StageThumbnail(userID int64, artifactPath string) error {
	if artifactPath == "" {
		return errors.New("artifact path required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.staged[userID]; ok && prev != artifactPath {
		if err := removeArtifact(prev); err != nil {
			m.logger.Warn("failed to remove replaced thumbnail",
				logging.Int64(logging.FieldUserID, userID),
				logging.String("path", prev),
				logging.Error(err))
		}
	}
	m.staged[userID] = artifactPath
	return nil
}

// TakeThumbnailForProcessing returns the user's staged thumbnail path. The
// thumbnail stays staged: a user can submit several videos against the same
// image until they replace or cancel it.
func (m *Manager) TakeThumbnailForProcessing(userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.staged[userID]
	if !ok {
		return "", services.Wrap(services.ErrThumbnailNotStaged, "session", "take", "", nil)
	}
	return path, nil
}

// Cancel resets the user to idle, removing any staged artifact from disk.
func (m *Manager) Cancel(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.staged[userID]
	if !ok {
		return nil
	}
	delete(m.staged, userID)

	if err := removeArtifact(path); err != nil {
		return services.Wrap(services.ErrArtifactIO, "session", "cancel", "remove staged thumbnail", err)
	}
	return nil
}

// HasStaged reports whether the user currently has a staged thumbnail.
func (m *Manager) HasStaged(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.staged[userID]
	return ok
}

func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
