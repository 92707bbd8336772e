package recovery

import (
	"context"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/status"
)

// podReadyChecker reports recovery once every matching pod is Running/Ready
// and the metrics pipeline answers for the selector. Pods existing is not
// enough, their telemetry has to be live again too.
type podReadyChecker struct {
	oracle *Oracle
}

func (p *podReadyChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Info("[Recovery]: Checking if pods have recovered to the Ready state")

	interval := time.Duration(p.oracle.ReadyDelay) * time.Second
	for start := time.Now(); time.Since(start) < timeout; {
		if ctx.Err() != nil {
			return false
		}
		if p.round(ctx, namespace, selector) {
			log.Info("[Recovery]: All pods are Running/Ready and metrics are accessible again")
			return true
		}
		time.Sleep(interval)
	}
	log.Error("[Recovery]: Timeout, pods did not all become Ready within the allowed time")
	return false
}

func (p *podReadyChecker) round(ctx context.Context, namespace, selector string) bool {
	pods, err := status.GetPodList(ctx, namespace, selector, p.oracle.Clients)
	if err != nil || len(pods) == 0 {
		log.Warnf("[Recovery]: No target pods found, waiting, err: %v", err)
		return false
	}

	for _, pod := range pods {
		if !status.IsPodRunningAndReady(pod) {
			log.Warnf("[Recovery]: Pod %v is NotReady", pod.Name)
			return false
		}
	}

	if err := p.oracle.Sampler.Available(ctx, namespace, selector); err != nil {
		log.Warnf("[Recovery]: Pods are Ready but metrics are not yet available, err: %v", err)
		return false
	}
	return true
}
