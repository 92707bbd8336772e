package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	logrus "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
)

// cpuChecker considers CPU stress recovered once every judged container's
// instantaneous usage stays below threshold times its declared limit
type cpuChecker struct {
	oracle    *Oracle
	threshold float64
}

func (c *cpuChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Infof("[Recovery]: Checking whether CPU stress has recovered (usage ratio below %.0f%% for each container)", c.threshold*100)

	c.oracle.waitReady(ctx, namespace, selector)

	recovered := c.oracle.converge(ctx, timeout, func() bool {
		return c.round(ctx, namespace, selector)
	})
	if recovered {
		log.Info("[Recovery]: CPU stress recovered, all containers are within the safe usage range")
	} else {
		log.Error("[Recovery]: Timeout, CPU usage did not recover within the expected time")
	}
	return recovered
}

// round samples every matching container once; any single container above the
// ratio fails the whole round
func (c *cpuChecker) round(ctx context.Context, namespace, selector string) bool {
	pods, err := status.GetPodList(ctx, namespace, selector, c.oracle.Clients)
	if err != nil || len(pods) == 0 {
		log.Warnf("[Recovery]: Unable to list target pods, err: %v", err)
		return false
	}

	usages, err := c.oracle.Sampler.TopPodContainers(ctx, namespace, selector)
	if err != nil {
		log.Warnf("[Recovery]: CPU metrics unavailable, retrying, err: %v", err)
		return false
	}

	allNormal := true
	for _, usage := range usages {
		if isInfraContainer(usage.Container) {
			continue
		}
		pod := findPod(pods, usage.Pod)
		if pod == nil {
			continue
		}
		limit := cpuLimitMillicores(pod, usage.Container)
		if limit == 0 {
			// cannot be judged without a declared limit; logged rather than
			// silently dropped, removed limits look exactly like this
			log.Warnf("[Recovery]: %v/%v has no CPU limit set (usage: %vm), skipping", usage.Pod, usage.Container, usage.CPUMillicores)
			continue
		}
		ratio := float64(usage.CPUMillicores) / float64(limit)
		log.InfoWithValues("[Recovery]: CPU sample", logrus.Fields{
			"pod":       usage.Pod,
			"container": usage.Container,
			"usage":     fmt.Sprintf("%vm/%vm", usage.CPUMillicores, limit),
			"ratio":     fmt.Sprintf("%.1f%%", ratio*100),
		})
		if ratio >= c.threshold {
			log.Warnf("[Recovery]: High CPU usage in %v/%v: %.1f%% >= %.0f%%", usage.Pod, usage.Container, ratio*100, c.threshold*100)
			allNormal = false
		}
	}
	return allNormal
}

func findPod(pods []corev1.Pod, name string) *corev1.Pod {
	for i := range pods {
		if pods[i].Name == name {
			return &pods[i]
		}
	}
	return nil
}

// cpuLimitMillicores returns the declared CPU limit of the named container,
// or 0 when no limit is declared
func cpuLimitMillicores(pod *corev1.Pod, containerName string) int64 {
	for _, container := range pod.Spec.Containers {
		if container.Name != containerName {
			continue
		}
		limit, ok := container.Resources.Limits[corev1.ResourceCPU]
		if !ok {
			return 0
		}
		return limit.MilliValue()
	}
	return 0
}
