package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify failures across the entitlement, session, and
// processing components. Callers branch with errors.Is.
var (
	// ErrKeyInvalid covers both "key does not exist" and "key already
	// consumed". The two cases are deliberately indistinguishable to the
	// redeemer so that key strings cannot be enumerated.
	ErrKeyInvalid = errors.New("auth key invalid")

	// ErrSubscriptionInactive marks an action that requires an active
	// entitlement window.
	ErrSubscriptionInactive = errors.New("subscription inactive")

	// ErrThumbnailNotStaged marks a video submission that arrived before any
	// thumbnail image.
	ErrThumbnailNotStaged = errors.New("thumbnail not staged")

	// ErrTranscodeFailed marks a video where both the stream-copy path and
	// the re-encode fallback failed.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrArtifactIO marks download, save, or cleanup failures on temporary
	// artifacts.
	ErrArtifactIO = errors.New("artifact io failed")
)

// Wrap builds an error that carries component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrArtifactIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage maps an error to the text shown to the end user. Diagnostic
// detail stays in the logs; the returned string is always actionable and never
// leaks transcoder output or key-existence information.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrKeyInvalid):
		return "Invalid or expired auth key."
	case errors.Is(err, ErrSubscriptionInactive):
		return "No active subscription. Redeem an auth key first."
	case errors.Is(err, ErrThumbnailNotStaged):
		return "Send a thumbnail image before sending a video."
	case errors.Is(err, ErrTranscodeFailed):
		return "Could not embed the thumbnail into this video. Try a different file."
	case errors.Is(err, ErrArtifactIO):
		return "A temporary file operation failed. Please try again."
	default:
		return "Something went wrong processing your request."
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
