// Package recovery implements the recovery oracle: one health predicate per
// failure kind, all answering the same question - has the targeted workload
// returned to its acceptable operating envelope?
//
// Every predicate follows a two-phase protocol. The readiness gate blocks
// until all matching pods are Running/Ready, then the convergence gate
// repeatedly samples a kind-specific metric until one fully-passing round is
// observed or the caller's timeout expires. Predicates never raise; a timeout
// or a transport failure answers false.
package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	"github.com/chaosmend/chaosmend-go/pkg/types"
)

const (
	// DefaultUsageRatio is the usage/limit ceiling below which a container
	// counts as recovered from resource stress
	DefaultUsageRatio = 0.5
	// DefaultMaxLatencyMs is the average round-trip ceiling for network recovery
	DefaultMaxLatencyMs = 1000
	// DefaultMaxLossPercent is the packet loss ceiling for network recovery
	DefaultMaxLossPercent = 0
	// DefaultMinWriteMBps is the write throughput floor for disk recovery
	DefaultMinWriteMBps = 10
)

// PodExecutor runs a command inside a pod's container and returns the
// combined output; an empty container targets the pod's first container
type PodExecutor interface {
	Exec(ctx context.Context, namespace, pod, container string, command []string) (string, error)
}

// Checker is one health predicate, answering whether the effect of a single
// failure kind has subsided for the workload behind the selector
type Checker interface {
	Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool
}

// Oracle dispatches recovery questions to the per-kind predicate
type Oracle struct {
	Clients clients.ClientSets
	Sampler metrics.Sampler
	Exec    PodExecutor

	// Interval is the poll interval of the metric convergence gate
	Interval time.Duration
	// ReadyTimeout and ReadyDelay bound the readiness gate, in seconds
	ReadyTimeout int
	ReadyDelay   int
	// ProbeTimeout bounds a single in-pod probe (ping, dd)
	ProbeTimeout time.Duration

	checkers map[types.FailureKind]Checker
}

// New constructs the oracle with the fixed kind to predicate table
func New(clientSets clients.ClientSets, sampler metrics.Sampler, executor PodExecutor) *Oracle {
	o := &Oracle{
		Clients:      clientSets,
		Sampler:      sampler,
		Exec:         executor,
		Interval:     2 * time.Second,
		ReadyTimeout: status.ReadyTimeout,
		ReadyDelay:   status.ReadyDelay,
		ProbeTimeout: 30 * time.Second,
	}
	cpu := &cpuChecker{oracle: o, threshold: DefaultUsageRatio}
	memory := &memoryChecker{oracle: o, threshold: DefaultUsageRatio}
	ping := &pingChecker{oracle: o, maxLatencyMs: DefaultMaxLatencyMs, maxLossPercent: DefaultMaxLossPercent}
	o.checkers = map[types.FailureKind]Checker{
		types.CPUStress:      cpu,
		types.MemoryStress:   memory,
		types.PodFail:        &podReadyChecker{oracle: o},
		types.NetworkLoss:    ping,
		types.NetworkDelay:   ping,
		types.DiskIO:         &diskChecker{oracle: o, minWriteMBps: DefaultMinWriteMBps},
		types.PodConfigError: &configChecker{cpu: cpu, memory: memory},
	}
	return o
}

// Check answers whether the given failure kind has recovered for the workload
// behind the selector. Unknown kinds fail closed.
func (o *Oracle) Check(ctx context.Context, namespace, selector string, kind types.FailureKind, timeout time.Duration) bool {
	checker, ok := o.checkers[kind]
	if !ok {
		log.Errorf("[Recovery]: No predicate registered for failure kind %v", kind)
		return false
	}
	return checker.Check(ctx, namespace, selector, timeout)
}

// waitReady runs the readiness gate. A gate timeout is logged but does not
// short-circuit the predicate, the convergence phase gives the final answer.
func (o *Oracle) waitReady(ctx context.Context, namespace, selector string) {
	if err := status.CheckPodsReady(ctx, namespace, selector, o.ReadyTimeout, o.ReadyDelay, o.Clients); err != nil {
		log.Warnf("[Recovery]: Readiness gate did not settle for %v, err: %v", selector, err)
	}
}

// converge polls one metric round every interval until it fully passes or the
// timeout expires. Success requires a single fully-passing round.
func (o *Oracle) converge(ctx context.Context, timeout time.Duration, round func() bool) bool {
	for start := time.Now(); time.Since(start) < timeout; {
		if ctx.Err() != nil {
			return false
		}
		if round() {
			return true
		}
		time.Sleep(o.Interval)
	}
	return false
}

// isInfraContainer excludes the sidecars injected next to the workload's own
// containers, their usage says nothing about the workload's health
func isInfraContainer(name string) bool {
	lowered := strings.ToLower(name)
	return strings.Contains(lowered, "sidecar") || strings.Contains(lowered, "busybox")
}
