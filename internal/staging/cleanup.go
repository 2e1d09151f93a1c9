package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"thumbpress/internal/logging"
)

// CleanResult contains the outcome of an expired-artifact sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanError
}

// CleanError pairs an artifact path with its removal error.
type CleanError struct {
	Path  string
	Error error
}

// CleanExpired removes regular files in dir whose modification time is older
// than maxAge. It is a pure sweep: scheduling belongs to the caller (the
// daemon runs it on a timer), which keeps the function directly testable.
func CleanExpired(dir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanError{Path: dir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove expired artifact",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"))
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed expired artifact",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"))
		}
	}

	return result
}
