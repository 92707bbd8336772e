package probe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/stretchr/testify/assert"
)

// scriptedRunner answers each `sh -c <cmd>` with a canned result
type scriptedRunner struct {
	results map[string]shell.Result
	ran     []string
}

func (s *scriptedRunner) Run(ctx context.Context, stdin, name string, args ...string) (shell.Result, error) {
	cmd := args[len(args)-1]
	s.ran = append(s.ran, cmd)
	if res, ok := s.results[cmd]; ok {
		return res, nil
	}
	return shell.Result{Stdout: "sh: " + cmd + ": not found", ExitCode: 127}, nil
}

func TestRunSplitsAndSequences(t *testing.T) {
	runner := &scriptedRunner{results: map[string]shell.Result{
		"kubectl get pods": {Stdout: "pod-1 Running"},
		"kubectl top pod":  {Stdout: "pod-1 900m 100Mi"},
	}}
	p := &Prober{Runner: runner, Timeout: time.Second}

	out := p.Run(context.Background(), "kubectl get pods; kubectl top pod")

	assert.Equal(t, []string{"kubectl get pods", "kubectl top pod"}, runner.ran)
	assert.Contains(t, out, "command: kubectl get pods\nresponse: pod-1 Running")
	assert.Contains(t, out, "command: kubectl top pod\nresponse: pod-1 900m 100Mi")
}

func TestRunReportsMissingBinaryInline(t *testing.T) {
	runner := &scriptedRunner{}
	p := &Prober{Runner: runner, Timeout: time.Second}

	out := p.Run(context.Background(), "frobnicate --all; echo hi")

	// the failure is reported and the next command still runs
	assert.Contains(t, out, "command not found: frobnicate --all")
	assert.Equal(t, 2, len(runner.ran))
}

func TestRunSkipsEmptySegments(t *testing.T) {
	runner := &scriptedRunner{results: map[string]shell.Result{"date": {Stdout: "now"}}}
	p := &Prober{Runner: runner, Timeout: time.Second}

	out := p.Run(context.Background(), " ; date ;; ")

	assert.Equal(t, 1, strings.Count(out, "command:"))
}

func TestRunTimesOut(t *testing.T) {
	p := &Prober{Runner: shell.LocalRunner{}, Timeout: 50 * time.Millisecond}

	out := p.Run(context.Background(), "sleep 5")

	assert.Contains(t, out, "time out")
}
