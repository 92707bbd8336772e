package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	logrus "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
)

// memoryChecker mirrors the CPU predicate for resident memory, with one
// asymmetry: a missing usage sample fails the round instead of skipping the
// container. Usage must be actively observable to call the workload safe.
type memoryChecker struct {
	oracle    *Oracle
	threshold float64
}

func (m *memoryChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Infof("[Recovery]: Checking memory recovery (threshold: %.0f%%)", m.threshold*100)

	m.oracle.waitReady(ctx, namespace, selector)

	recovered := m.oracle.converge(ctx, timeout, func() bool {
		return m.round(ctx, namespace, selector)
	})
	if recovered {
		log.Info("[Recovery]: Memory stress has fully recovered")
	} else {
		log.Error("[Recovery]: Timeout, memory stress not fully recovered")
	}
	return recovered
}

func (m *memoryChecker) round(ctx context.Context, namespace, selector string) bool {
	pods, err := status.GetPodList(ctx, namespace, selector, m.oracle.Clients)
	if err != nil || len(pods) == 0 {
		log.Warnf("[Recovery]: Unable to list target pods, err: %v", err)
		return false
	}

	allNormal := true
	for i := range pods {
		if !m.podWithinEnvelope(ctx, namespace, &pods[i]) {
			allNormal = false
		}
	}
	return allNormal
}

func (m *memoryChecker) podWithinEnvelope(ctx context.Context, namespace string, pod *corev1.Pod) bool {
	usages, err := m.oracle.Sampler.TopPod(ctx, namespace, pod.Name)
	if err != nil {
		log.Warnf("[Recovery]: Memory metrics unavailable for %v, err: %v", pod.Name, err)
		return false
	}

	normal := true
	for _, container := range pod.Spec.Containers {
		if isInfraContainer(container.Name) {
			continue
		}
		limit, ok := container.Resources.Limits[corev1.ResourceMemory]
		if !ok {
			log.Warnf("[Recovery]: %v/%v has no memory limit set, skipping", pod.Name, container.Name)
			continue
		}
		limitBytes := limit.Value()
		if limitBytes == 0 {
			log.Warnf("[Recovery]: %v/%v has no memory limit set, skipping", pod.Name, container.Name)
			continue
		}

		usageBytes, found := usageForContainer(usages, container.Name)
		if !found {
			log.Warnf("[Recovery]: No memory usage sample for %v/%v", pod.Name, container.Name)
			normal = false
			continue
		}

		ratio := float64(usageBytes) / float64(limitBytes)
		log.InfoWithValues("[Recovery]: Memory sample", logrus.Fields{
			"pod":       pod.Name,
			"container": container.Name,
			"usage":     fmt.Sprintf("%.1fMB/%.1fMB", float64(usageBytes)/(1<<20), float64(limitBytes)/(1<<20)),
			"ratio":     fmt.Sprintf("%.1f%%", ratio*100),
		})
		if ratio >= m.threshold {
			log.Warnf("[Recovery]: High memory usage in %v/%v: %.1f%% >= %.0f%%", pod.Name, container.Name, ratio*100, m.threshold*100)
			normal = false
		}
	}
	return normal
}

func usageForContainer(usages []metrics.ContainerUsage, containerName string) (int64, bool) {
	for _, usage := range usages {
		if usage.Container == containerName {
			return usage.MemoryBytes, true
		}
	}
	return 0, false
}
