// Package staging manages the on-disk workspace for temporary artifacts:
// inbound thumbnails and videos under downloads/, processed results under
// outputs/. Artifact names embed the owning user and a random suffix so
// concurrent requests never collide.
package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace resolves artifact paths beneath a work directory.
type Workspace struct {
	downloadsDir string
	outputsDir   string
}

// NewWorkspace builds a workspace rooted at the given directories.
func NewWorkspace(downloadsDir, outputsDir string) *Workspace {
	return &Workspace{downloadsDir: downloadsDir, outputsDir: outputsDir}
}

// DownloadsDir returns the inbound artifact directory.
func (w *Workspace) DownloadsDir() string { return w.downloadsDir }

// OutputsDir returns the processed artifact directory.
func (w *Workspace) OutputsDir() string { return w.outputsDir }

// ThumbnailPath returns a fresh path for a user's inbound thumbnail image.
func (w *Workspace) ThumbnailPath(userID int64) string {
	return filepath.Join(w.downloadsDir, fmt.Sprintf("thumb_%d_%s.jpg", userID, shortID()))
}

// VideoPath returns a fresh path for a user's inbound video, preserving the
// original file name for later display.
func (w *Workspace) VideoPath(userID int64, originalName string) string {
	name := sanitizeName(originalName)
	return filepath.Join(w.downloadsDir, fmt.Sprintf("video_%d_%s_%s", userID, shortID(), name))
}

// OutputPath returns a fresh path for a processed video.
func (w *Workspace) OutputPath() string {
	return filepath.Join(w.outputsDir, fmt.Sprintf("output_%s.mp4", shortID()))
}

// NormalizedImagePath returns a fresh path for the resized thumbnail the
// pipeline feeds to the transcoder.
func (w *Workspace) NormalizedImagePath() string {
	return filepath.Join(w.downloadsDir, fmt.Sprintf("thumb_resized_%s.jpg", shortID()))
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "video.mp4"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
