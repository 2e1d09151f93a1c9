package main

import (
	"bytes"
	"strings"
	"testing"

	"thumbpress/internal/entitlement"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v\noutput: %s", args, err, buf.String())
	}
	return buf.String()
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
}

func TestGenkeyWritesKeyToStore(t *testing.T) {
	isolateHome(t)

	output := strings.TrimSpace(runCommand(t, "genkey", "7d"))
	if !entitlement.LooksLikeKey(output) {
		t.Fatalf("expected a key, got %q", output)
	}

	listing := runCommand(t, "keys")
	if !strings.Contains(listing, output) {
		t.Fatalf("keys listing missing generated key:\n%s", listing)
	}
	if !strings.Contains(listing, "7 days") {
		t.Fatalf("keys listing missing duration:\n%s", listing)
	}
}

func TestGenkeyRejectsBadDuration(t *testing.T) {
	isolateHome(t)

	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"genkey", "seven days"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected malformed duration to fail")
	}
}

func TestStatsOnFreshInstall(t *testing.T) {
	isolateHome(t)

	output := runCommand(t, "stats")
	for _, want := range []string{"Total users", "Videos processed", "Keys generated"} {
		if !strings.Contains(output, want) {
			t.Errorf("stats output missing %q:\n%s", want, output)
		}
	}
}

func TestConfigValidateWithDefaults(t *testing.T) {
	isolateHome(t)

	output := runCommand(t, "config", "validate")
	if !strings.Contains(output, "Configuration valid") {
		t.Fatalf("unexpected validate output:\n%s", output)
	}
}

func TestConfigInitThenShow(t *testing.T) {
	isolateHome(t)

	initOut := runCommand(t, "config", "init")
	if !strings.Contains(initOut, "Wrote sample configuration") {
		t.Fatalf("unexpected init output:\n%s", initOut)
	}

	showOut := runCommand(t, "config", "show")
	for _, want := range []string{"Work directory", "FFmpeg binary", "Health bind"} {
		if !strings.Contains(showOut, want) {
			t.Errorf("config show missing %q:\n%s", want, showOut)
		}
	}
}

func TestRenderTablePadsRaggedRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B"},
		[][]string{{"only-a"}},
		1,
	)
	if !strings.Contains(out, "only-a") {
		t.Fatalf("table missing cell value:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("empty header set must render nothing")
	}
}
