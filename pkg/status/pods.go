// Package status implements the readiness gate shared by every recovery
// predicate: all pods matching a selector must be running, ready, and not
// marked for deletion before any metric convergence question is asked.
package status

import (
	"context"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/utils/retry"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// ReadyTimeout bounds the readiness gate
	ReadyTimeout = 300
	// ReadyDelay is the poll interval of the readiness gate, in seconds
	ReadyDelay = 10
)

// GetPodList retrieves the pods in the given namespace matching the label selector
func GetPodList(ctx context.Context, namespace, selector string, clients clients.ClientSets) ([]corev1.Pod, error) {
	podList, err := clients.KubeClient.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, errors.Errorf("Unable to find the pods with matching labels, err: %v", err)
	}
	return podList.Items, nil
}

// IsPodRunningAndReady checks whether a pod is in Running phase with the Ready
// condition true. Pods marked for deletion are never counted as ready, even
// while their phase still reports Running.
func IsPodRunningAndReady(pod corev1.Pod) bool {
	if pod.DeletionTimestamp != nil {
		return false
	}
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.Status != corev1.ConditionTrue {
			return false
		}
	}
	return true
}

// CheckPodsReady blocks until all pods matching the selector are running and
// ready, polling every delay seconds up to timeout seconds
func CheckPodsReady(ctx context.Context, namespace, selector string, timeout, delay int, clients clients.ClientSets) error {
	return retry.
		Times(uint(timeout / delay)).
		Wait(time.Duration(delay) * time.Second).
		Try(func(attempt uint) error {
			pods, err := GetPodList(ctx, namespace, selector, clients)
			if err != nil {
				return err
			}
			if len(pods) == 0 {
				return cerrors.StatusChecks{Target: selector, Reason: "no target pods found"}
			}
			for _, pod := range pods {
				if !IsPodRunningAndReady(pod) {
					log.Infof("[Status]: Pod %v is not yet Running/Ready, waiting...", pod.Name)
					return cerrors.StatusChecks{Target: pod.Name, Reason: "pod is not yet in Running/Ready state"}
				}
			}
			return nil
		})
}

// CheckMetricsAvailable blocks until the metrics pipeline answers for the
// selector, polling every delay seconds up to timeout seconds. A workload is
// not considered recovered while its telemetry is silent.
func CheckMetricsAvailable(ctx context.Context, namespace, selector string, timeout, delay int, sampler metrics.Sampler) error {
	return retry.
		Times(uint(timeout / delay)).
		Wait(time.Duration(delay) * time.Second).
		Try(func(attempt uint) error {
			if err := sampler.Available(ctx, namespace, selector); err != nil {
				log.Infof("[Status]: Metrics are not yet available, waiting... (%v)", err)
				return err
			}
			return nil
		})
}
