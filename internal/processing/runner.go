package processing

import (
	"context"
	"os/exec"
)

// Runner abstracts transcoder execution for testability. The returned bytes
// are the combined stdout/stderr of the invocation; they carry the diagnostic
// text surfaced in logs when both paths fail.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.CombinedOutput()
}
