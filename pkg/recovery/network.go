package recovery

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/status"
)

// fallbackProbeContainer is tried when the workload's own image lacks ping
const fallbackProbeContainer = "sidecar-busybox"

var pingCommand = []string{"ping", "-c", "3", "-W", "2", "8.8.8.8"}

// pingChecker verifies network recovery with an active probe from inside
// every matching pod: packet loss and average round-trip latency both have to
// be within bounds for all pods in the same round. Garbage probe output is
// read as total loss.
type pingChecker struct {
	oracle         *Oracle
	maxLatencyMs   float64
	maxLossPercent float64
}

func (p *pingChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Info("[Recovery]: Checking network recovery based on ping latency and packet loss")

	p.oracle.waitReady(ctx, namespace, selector)

	recovered := p.oracle.converge(ctx, timeout, func() bool {
		return p.round(ctx, namespace, selector)
	})
	if recovered {
		log.Info("[Recovery]: Network has recovered for all pods, loss and latency within thresholds")
	} else {
		log.Error("[Recovery]: Timeout, network latency and/or packet loss did not recover in time")
	}
	return recovered
}

func (p *pingChecker) round(ctx context.Context, namespace, selector string) bool {
	pods, err := status.GetPodList(ctx, namespace, selector, p.oracle.Clients)
	if err != nil || len(pods) == 0 {
		log.Warnf("[Recovery]: Unable to list target pods, err: %v", err)
		return false
	}

	allOK := true
	for _, pod := range pods {
		if !p.podNetworkHealthy(ctx, namespace, pod.Name) {
			allOK = false
		}
	}
	return allOK
}

func (p *pingChecker) podNetworkHealthy(ctx context.Context, namespace, podName string) bool {
	output, err := p.probe(ctx, namespace, podName)
	if err != nil && !strings.Contains(output, "packet loss") {
		log.Warnf("[Recovery]: Ping probe failed for %v, err: %v", podName, err)
		return false
	}

	loss := parsePacketLoss(output)
	if loss > p.maxLossPercent {
		log.Warnf("[Recovery]: Packet loss too high for %v: %.1f%% > %.1f%%", podName, loss, p.maxLossPercent)
		return false
	}

	latency, ok := parseAvgLatency(output)
	if !ok || latency > p.maxLatencyMs {
		log.Warnf("[Recovery]: Latency too high or unparsable for %v: %.1fms", podName, latency)
		return false
	}
	return true
}

// probe pings from the pod's main container, falling back to the diagnostic
// sidecar when the main image has no ping binary
func (p *pingChecker) probe(ctx context.Context, namespace, podName string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.oracle.ProbeTimeout)
	defer cancel()

	output, err := p.oracle.Exec.Exec(probeCtx, namespace, podName, "", pingCommand)
	if needsFallback(output, err) {
		fallbackCtx, fallbackCancel := context.WithTimeout(ctx, p.oracle.ProbeTimeout)
		defer fallbackCancel()
		output, err = p.oracle.Exec.Exec(fallbackCtx, namespace, podName, fallbackProbeContainer, pingCommand)
	}
	return output, err
}

func needsFallback(output string, err error) bool {
	combined := output
	if err != nil {
		combined += err.Error()
	}
	return strings.Contains(combined, "executable file not found") ||
		strings.Contains(combined, "OCI runtime exec failed")
}

// parsePacketLoss extracts the loss percentage from a ping summary line such
// as "3 packets transmitted, 3 received, 0% packet loss, time 2003ms".
// Unparsable output is worst-cased to 100% loss.
func parsePacketLoss(output string) float64 {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "packet loss") || !strings.Contains(line, "transmitted") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			return 100
		}
		lossField := strings.TrimSpace(parts[2])
		percent := strings.SplitN(lossField, "%", 2)[0]
		loss, err := strconv.ParseFloat(strings.TrimSpace(percent), 64)
		if err != nil {
			return 100
		}
		return loss
	}
	return 100
}

// parseAvgLatency extracts the average round trip from a summary line such as
// "rtt min/avg/max/mdev = 0.041/0.052/0.071/0.013 ms"
func parseAvgLatency(output string) (float64, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "round-trip min/avg/max") && !strings.Contains(line, "rtt min/avg/max") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return 0, false
		}
		fields := strings.Fields(strings.TrimSpace(parts[1]))
		if len(fields) == 0 {
			return 0, false
		}
		values := strings.Split(fields[0], "/")
		if len(values) < 2 {
			return 0, false
		}
		avg, err := strconv.ParseFloat(values[1], 64)
		if err != nil {
			return 0, false
		}
		return avg, true
	}
	return 0, false
}
