// Package restore returns a degraded workload to its recorded original
// state: divergent or abnormal pods are deleted and the original manifest is
// re-applied, then readiness is awaited.
package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/palantir/stacktrace"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DefaultApplyTimeout bounds the manifest re-apply
const DefaultApplyTimeout = 30 * time.Second

// Restorer re-applies recorded manifests and clears out pods that no longer
// match them
type Restorer struct {
	Clients      clients.ClientSets
	Runner       shell.Runner
	Sampler      metrics.Sampler
	Index        *Index
	ApplyTimeout time.Duration
	ReadyTimeout int
	ReadyDelay   int
}

// New builds a restorer over the manifest index
func New(clientSets clients.ClientSets, sampler metrics.Sampler, index *Index) *Restorer {
	return &Restorer{
		Clients:      clientSets,
		Runner:       shell.LocalRunner{},
		Sampler:      sampler,
		Index:        index,
		ApplyTimeout: DefaultApplyTimeout,
		ReadyTimeout: status.ReadyTimeout,
		ReadyDelay:   status.ReadyDelay,
	}
}

// Restore brings the workload behind the app label back to its recorded
// shape. Pods that are abnormal or whose container resources diverge from
// the original are deleted before the manifest is re-applied.
func (r *Restorer) Restore(ctx context.Context, namespace, app string) error {
	entry, ok := r.Index.Lookup(app)
	if !ok {
		return cerrors.Restore{Target: app, Reason: "no recorded manifest for workload"}
	}
	log.Infof("[Restore]: Restoring %v/%v from recorded manifest", namespace, app)

	if err := r.deleteDivergentPods(ctx, namespace, app, entry); err != nil {
		log.Warnf("[Restore]: Unable to clear divergent pods, err: %v", err)
	}
	if err := r.applyManifest(ctx, app, entry); err != nil {
		return stacktrace.Propagate(err, "could not re-apply the recorded manifest for %v", app)
	}
	if err := status.CheckPodsReady(ctx, namespace, "app="+app, r.ReadyTimeout, r.ReadyDelay, r.Clients); err != nil {
		return cerrors.Restore{Target: app, Reason: fmt.Sprintf("workload did not settle after restore: %v", err)}
	}
	if err := status.CheckMetricsAvailable(ctx, namespace, "app="+app, r.ReadyTimeout, r.ReadyDelay, r.Sampler); err != nil {
		return cerrors.Restore{Target: app, Reason: fmt.Sprintf("metrics did not return after restore: %v", err)}
	}

	log.Infof("[Restore]: Workload %v restored", app)
	return nil
}

func (r *Restorer) deleteDivergentPods(ctx context.Context, namespace, app string, entry Entry) error {
	pods, err := status.GetPodList(ctx, namespace, "app="+app, r.Clients)
	if err != nil {
		return err
	}

	for i := range pods {
		pod := &pods[i]
		abnormal := !status.IsPodRunningAndReady(*pod)
		divergent := podDiverges(pod, entry)
		if !abnormal && !divergent {
			continue
		}
		log.Infof("[Restore]: Deleting pod %v (abnormal: %v, divergent: %v)", pod.Name, abnormal, divergent)
		if err := r.Clients.KubeClient.CoreV1().Pods(namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{}); err != nil {
			log.Warnf("[Restore]: Unable to delete pod %v, err: %v", pod.Name, err)
		}
	}
	return nil
}

func (r *Restorer) applyManifest(ctx context.Context, app string, entry Entry) error {
	applyCtx, cancel := context.WithTimeout(ctx, r.ApplyTimeout)
	defer cancel()

	result, err := r.Runner.Run(applyCtx, entry.Doc, "kubectl", "apply", "-f", "-")
	if err != nil {
		return cerrors.Restore{Target: app, Reason: fmt.Sprintf("manifest apply failed: %v", err)}
	}
	if result.ExitCode != 0 {
		return cerrors.Restore{Target: app, Reason: "manifest apply failed: " + result.Combined()}
	}
	return nil
}

// podDiverges reports whether any container's declared resources differ from
// the recorded original. Quantities are compared by value, "500m" and "0.5"
// are the same amount of cpu.
func podDiverges(pod *corev1.Pod, entry Entry) bool {
	for _, container := range pod.Spec.Containers {
		recorded, ok := entry.Resources[container.Name]
		if !ok {
			continue
		}
		live := container.Resources
		if quantitiesDiffer(recorded.CPULimit, live.Limits.Cpu()) ||
			quantitiesDiffer(recorded.MemoryLimit, live.Limits.Memory()) ||
			quantitiesDiffer(recorded.CPURequest, live.Requests.Cpu()) ||
			quantitiesDiffer(recorded.MemoryRequest, live.Requests.Memory()) {
			return true
		}
	}
	return false
}

func quantitiesDiffer(recorded string, live *resource.Quantity) bool {
	if recorded == "" {
		return false
	}
	want, err := resource.ParseQuantity(recorded)
	if err != nil {
		log.Warnf("[Restore]: Unparsable recorded quantity %q, err: %v", recorded, err)
		return false
	}
	return want.Cmp(*live) != 0
}
