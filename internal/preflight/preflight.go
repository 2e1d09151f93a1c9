// Package preflight provides readiness checks for the filesystem paths and
// external binaries the service depends on.
//
// The checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to serve when a
//     required check fails, so a misconfigured instance fails fast instead
//     of failing on the first user request.
//   - The CLI "thumbpress status" command uses the individual check
//     functions to display health.
package preflight

import (
	"context"

	"thumbpress/internal/config"
	"thumbpress/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeBytes is the floor for usable space in the work directory. Inbound
// videos and transcode outputs both land there, so a nearly full disk fails
// mid-transcode otherwise.
const MinFreeBytes = 2 << 30

// RunAll executes all filesystem preflight checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Downloads directory", cfg.DownloadsDir()),
		CheckDirectoryAccess("Outputs directory", cfg.OutputsDir()),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes))
	return results
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.TranscoderRequirements(
		cfg.Processing.FFmpegBinary,
		cfg.Processing.FFprobeBinary,
	))
}

// Passed reports whether every non-optional check succeeded.
func Passed(results []Result, statuses []deps.Status) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return false
		}
	}
	return true
}
