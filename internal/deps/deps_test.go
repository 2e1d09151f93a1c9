package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unconfigured", Command: "   "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present {
		t.Fatalf("expected resolved path %s, got %s", present, results[0].Path)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available {
		t.Fatalf("expected unconfigured command to be unavailable")
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unconfigured command: %s", results[2].Detail)
	}
}

func TestTranscoderRequirements(t *testing.T) {
	reqs := TranscoderRequirements("/opt/bin/ffmpeg", "/opt/bin/ffprobe")
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/bin/ffmpeg" || reqs[0].Optional {
		t.Fatalf("unexpected ffmpeg requirement: %#v", reqs[0])
	}
	if reqs[1].Command != "/opt/bin/ffprobe" || !reqs[1].Optional {
		t.Fatalf("unexpected ffprobe requirement: %#v", reqs[1])
	}
}

func TestBinaryVersionMissingBinary(t *testing.T) {
	if got := BinaryVersion(context.Background(), "clearly-not-present-binary"); got != "" {
		t.Fatalf("expected empty version for missing binary, got %q", got)
	}
	if got := BinaryVersion(context.Background(), " "); got != "" {
		t.Fatalf("expected empty version for unconfigured binary, got %q", got)
	}
}

func TestBinaryVersionReportsFirstLine(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1'\necho 'built with gcc'\n")
	if err := os.WriteFile(stub, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if got := BinaryVersion(context.Background(), stub); got != "ffmpeg version 7.1" {
		t.Fatalf("unexpected version line: %q", got)
	}
}
