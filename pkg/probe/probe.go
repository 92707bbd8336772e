// Package probe runs the read-only diagnostic commands requested by the
// language model and folds their output into a single transcript the model
// can reason over.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
)

// DefaultCommandTimeout bounds one diagnostic command
const DefaultCommandTimeout = 10 * time.Second

// Prober runs semicolon-separated shell commands sequentially and reports
// each command with its observed response
type Prober struct {
	Runner  shell.Runner
	Timeout time.Duration
}

// New builds a prober backed by the local shell
func New() *Prober {
	return &Prober{Runner: shell.LocalRunner{}, Timeout: DefaultCommandTimeout}
}

// Run splits the request on semicolons and executes each command through
// `sh -c`, one after another. Failures never abort the sequence; a timeout or
// a missing binary is reported inline so the model sees what the operator
// would see.
func (p *Prober) Run(ctx context.Context, commands string) string {
	var transcript strings.Builder
	for _, command := range strings.Split(commands, ";") {
		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}
		transcript.WriteString(fmt.Sprintf("command: %s\nresponse: %s\n", command, p.runOne(ctx, command)))
	}
	return transcript.String()
}

func (p *Prober) runOne(ctx context.Context, command string) string {
	log.Infof("[Probe]: Running diagnostic command: %v", command)

	cmdCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	result, err := p.Runner.Run(cmdCtx, "", "sh", "-c", command)
	if cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("command time out after %v", p.Timeout)
	}
	if err != nil {
		return fmt.Sprintf("command failed: %v", err)
	}

	output := strings.TrimSpace(result.Combined())
	if result.ExitCode != 0 {
		if strings.Contains(output, "not found") {
			return fmt.Sprintf("command not found: %s", command)
		}
		return fmt.Sprintf("exit code %d: %s", result.ExitCode, output)
	}
	if output == "" {
		return "(no output)"
	}
	return output
}
