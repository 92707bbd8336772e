// Package shell runs local commands against the cluster tooling (kubectl,
// deploy scripts) behind an interface, so callers can be exercised without a
// cluster.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Result carries the outcome of one command invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout and stderr joined, trimmed
func (r Result) Combined() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// Runner executes a single command with optional stdin.
// A non-nil error means the command could not be started or was cut off by
// the context deadline; a non-zero exit code alone is not an error.
type Runner interface {
	Run(ctx context.Context, stdin, name string, args ...string) (Result, error)
}

// LocalRunner runs commands on the local host via os/exec
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, stdin, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if _, ok := err.(*exec.ExitError); ok {
		// command ran and failed, the exit code tells the story
		return result, nil
	}
	return result, err
}
