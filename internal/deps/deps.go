// Package deps reports availability of the external transcoder binaries the
// processing pipeline shells out to.
package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Requirement names an external binary the service executes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the result of resolving a requirement against PATH.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Check resolves the requirement and reports where the binary was found.
func (r Requirement) Check() Status {
	status := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = resolved
	return status
}

// CheckBinaries evaluates every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = req.Check()
	}
	return statuses
}

// TranscoderRequirements lists the binaries the video pipeline executes.
// FFprobe is optional; without it output verification is skipped.
func TranscoderRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for thumbnail embedding",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for output verification",
			Optional:    true,
		},
	}
}

// BinaryVersion runs "<binary> -version" and returns the first output line,
// or an empty string when the binary cannot report one. Used for status
// display only.
func BinaryVersion(ctx context.Context, binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := bytes.Cut(output, []byte("\n"))
	return strings.TrimSpace(string(line))
}
