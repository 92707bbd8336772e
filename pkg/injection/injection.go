// Package injection applies and removes the chaos faults under study. Most
// kinds render an embedded chaos-mesh resource and apply it through kubectl;
// the config-error kind degrades the deployment's own resource limits
// through the API server instead.
package injection

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/palantir/stacktrace"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// DefaultApplyTimeout bounds one kubectl apply or delete
const DefaultApplyTimeout = 10 * time.Second

// chaosResource names the applied custom resource for each template kind, so
// Stop can delete exactly what Inject created
var chaosResource = map[types.FailureKind]struct {
	crdKind string
	name    string
}{
	types.CPUStress:    {"stresschaos", "chaosmend-cpu-stress"},
	types.MemoryStress: {"stresschaos", "chaosmend-memory-stress"},
	types.PodFail:      {"podchaos", "chaosmend-pod-fail"},
	types.NetworkLoss:  {"networkchaos", "chaosmend-network-loss"},
	types.NetworkDelay: {"networkchaos", "chaosmend-network-delay"},
	types.DiskIO:       {"iochaos", "chaosmend-disk-io"},
}

// Injector applies failures to a target workload
type Injector struct {
	Clients      clients.ClientSets
	Runner       shell.Runner
	ApplyTimeout time.Duration
}

// New builds an injector driving kubectl through the local shell
func New(clientSets clients.ClientSets) *Injector {
	return &Injector{
		Clients:      clientSets,
		Runner:       shell.LocalRunner{},
		ApplyTimeout: DefaultApplyTimeout,
	}
}

// Inject applies the failure kind to the target workload in the namespace
func (inj *Injector) Inject(ctx context.Context, kind types.FailureKind, target, namespace string) error {
	log.Infof("[Injection]: Injecting %v into %v/%v", kind, namespace, target)

	if kind == types.PodConfigError {
		if err := inj.injectConfigError(ctx, target, namespace); err != nil {
			return stacktrace.Propagate(err, "could not degrade the %v deployment config", target)
		}
		return nil
	}

	manifest, err := renderTemplate(kind, target, namespace)
	if err != nil {
		return err
	}
	if err := inj.apply(ctx, kind, target, manifest); err != nil {
		return stacktrace.Propagate(err, "could not apply the %v chaos resource", kind)
	}
	return nil
}

// Stop removes the fault applied by Inject. It is idempotent; a fault that
// was never applied or is already gone is not an error.
func (inj *Injector) Stop(ctx context.Context, kind types.FailureKind, namespace string) error {
	if kind == types.PodConfigError {
		// nothing to tear down, the manifest restore reverts the patch
		return nil
	}

	resource, ok := chaosResource[kind]
	if !ok {
		return cerrors.Injection{Kind: string(kind), Reason: "no chaos resource registered for kind"}
	}
	log.Infof("[Injection]: Removing %v/%v", resource.crdKind, resource.name)

	deleteCtx, cancel := context.WithTimeout(ctx, inj.ApplyTimeout)
	defer cancel()

	result, err := inj.Runner.Run(deleteCtx, "", "kubectl", "delete", resource.crdKind, resource.name,
		"-n", namespace, "--ignore-not-found", "--timeout="+inj.ApplyTimeout.String())
	if err == nil && result.ExitCode == 0 {
		return nil
	}

	// iochaos deletes can hang on the chaos-mesh finalizer when the daemon
	// already lost track of the fault; strip it and retry
	if resource.crdKind == "iochaos" {
		log.Warnf("[Injection]: Delete of %v stalled, stripping finalizers", resource.name)
		return inj.stripFinalizers(ctx, resource.crdKind, resource.name, namespace)
	}
	if err != nil {
		return cerrors.Injection{Kind: string(kind), Reason: fmt.Sprintf("failed to delete chaos resource: %v", err)}
	}
	return cerrors.Injection{Kind: string(kind), Reason: "failed to delete chaos resource: " + result.Combined()}
}

func (inj *Injector) apply(ctx context.Context, kind types.FailureKind, target, manifest string) error {
	applyCtx, cancel := context.WithTimeout(ctx, inj.ApplyTimeout)
	defer cancel()

	result, err := inj.Runner.Run(applyCtx, manifest, "kubectl", "apply", "-f", "-")
	if err != nil {
		return cerrors.Injection{Kind: string(kind), Target: target, Reason: fmt.Sprintf("kubectl apply failed: %v", err)}
	}
	if result.ExitCode != 0 {
		return cerrors.Injection{Kind: string(kind), Target: target, Reason: "kubectl apply failed: " + result.Combined()}
	}
	return nil
}

func (inj *Injector) stripFinalizers(ctx context.Context, crdKind, name, namespace string) error {
	patchCtx, cancel := context.WithTimeout(ctx, inj.ApplyTimeout)
	defer cancel()

	result, err := inj.Runner.Run(patchCtx, "", "kubectl", "patch", crdKind, name, "-n", namespace,
		"--type=merge", "-p", `{"metadata":{"finalizers":[]}}`)
	if err != nil {
		return cerrors.Injection{Kind: crdKind, Reason: fmt.Sprintf("finalizer strip failed: %v", err)}
	}
	if result.ExitCode != 0 && !strings.Contains(result.Combined(), "not found") {
		return cerrors.Injection{Kind: crdKind, Reason: "finalizer strip failed: " + result.Combined()}
	}
	return nil
}

func renderTemplate(kind types.FailureKind, target, namespace string) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + string(kind) + ".yaml")
	if err != nil {
		return "", cerrors.Injection{Kind: string(kind), Reason: "no template for kind: " + err.Error()}
	}
	manifest := strings.ReplaceAll(string(raw), "[target_pod]", target)
	manifest = strings.ReplaceAll(manifest, "[target_namespace]", namespace)
	return manifest, nil
}
