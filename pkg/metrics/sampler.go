package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/pkg/errors"
)

// ContainerUsage is one sampled row of the per-container resource telemetry
type ContainerUsage struct {
	Pod           string
	Container     string
	CPUMillicores int64
	MemoryBytes   int64
}

// Sampler answers instantaneous resource usage questions for a workload.
// Errors are transient by contract, callers poll until their own timeout.
type Sampler interface {
	// TopPodContainers samples per-container usage for all pods matching the selector
	TopPodContainers(ctx context.Context, namespace, selector string) ([]ContainerUsage, error)
	// TopPod samples per-container usage for a single pod
	TopPod(ctx context.Context, namespace, pod string) ([]ContainerUsage, error)
	// Available reports whether the metrics pipeline answers for the selector
	Available(ctx context.Context, namespace, selector string) error
}

// KubectlSampler samples usage through `kubectl top pod`, the same surface the
// metrics-server exposes to operators
type KubectlSampler struct {
	Runner  shell.Runner
	Timeout time.Duration
}

// NewKubectlSampler returns a sampler with the default 10s per-query timeout
func NewKubectlSampler(runner shell.Runner) *KubectlSampler {
	return &KubectlSampler{Runner: runner, Timeout: 10 * time.Second}
}

func (s *KubectlSampler) TopPodContainers(ctx context.Context, namespace, selector string) ([]ContainerUsage, error) {
	result, err := s.run(ctx, "top", "pod", "-n", namespace, "--selector", selector, "--containers")
	if err != nil {
		return nil, err
	}
	return parseTopContainers(result.Stdout)
}

func (s *KubectlSampler) TopPod(ctx context.Context, namespace, pod string) ([]ContainerUsage, error) {
	result, err := s.run(ctx, "top", "pod", pod, "-n", namespace, "--containers")
	if err != nil {
		return nil, err
	}
	return parseTopContainers(result.Stdout)
}

func (s *KubectlSampler) Available(ctx context.Context, namespace, selector string) error {
	result, err := s.run(ctx, "top", "pod", "-n", namespace, "-l", selector)
	if err != nil {
		return err
	}
	output := result.Combined()
	switch {
	case strings.Contains(output, "error: metrics not available"):
		return cerrors.Generic{Phase: "Metrics", Reason: "metrics not available yet"}
	case strings.Contains(output, "No resources found"):
		return cerrors.Generic{Phase: "Metrics", Reason: "metrics-server returned empty results"}
	case result.ExitCode != 0:
		return cerrors.Generic{Phase: "Metrics", Reason: "unable to retrieve metrics: " + output}
	}
	return nil
}

func (s *KubectlSampler) run(ctx context.Context, args ...string) (shell.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	result, err := s.Runner.Run(queryCtx, "", "kubectl", args...)
	if err != nil {
		return result, errors.Wrapf(err, "unable to run kubectl %v", args[0])
	}
	if result.ExitCode != 0 {
		return result, errors.Errorf("kubectl %v failed: %v", args[0], strings.TrimSpace(result.Stderr))
	}
	return result, nil
}

// parseTopContainers parses `kubectl top pod --containers` output of the form
//
//	POD         NAME        CPU(cores)   MEMORY(bytes)
//	svc-a-xyz   svc-a       12m          120Mi
func parseTopContainers(output string) ([]ContainerUsage, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return nil, errors.New("no metrics data available yet")
	}

	var usages []ContainerUsage
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		cpu, err := ParseCPUMillicores(fields[2])
		if err != nil {
			return nil, err
		}
		memory, err := ParseMemoryBytes(fields[3])
		if err != nil {
			return nil, err
		}
		usages = append(usages, ContainerUsage{
			Pod:           fields[0],
			Container:     fields[1],
			CPUMillicores: cpu,
			MemoryBytes:   memory,
		})
	}
	if len(usages) == 0 {
		return nil, errors.New("no metrics data available yet")
	}
	return usages, nil
}
