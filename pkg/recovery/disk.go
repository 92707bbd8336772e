package recovery

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/status"
)

const (
	diskTestFile       = "/tmp/chaosmend-disk-write.tmp"
	diskTestSizeMB     = 10
	minWriteDurationMs = 1
)

// diskWriteScript writes a fixed-size block with direct I/O and echoes the
// wall-clock duration in milliseconds as its last output line
var diskWriteScript = "time_start=$(date +%s%3N); " +
	"dd if=/dev/zero of=" + diskTestFile + " bs=1M count=" + strconv.Itoa(diskTestSizeMB) + " oflag=direct 2>&1; " +
	"time_end=$(date +%s%3N); " +
	"echo $((time_end - time_start))"

// diskChecker measures write throughput with a timed in-pod dd; every pod has
// to clear the floor in the same round
type diskChecker struct {
	oracle       *Oracle
	minWriteMBps float64
}

func (d *diskChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Info("[Recovery]: Checking if disk write performance has recovered")

	d.oracle.waitReady(ctx, namespace, selector)

	recovered := d.oracle.converge(ctx, timeout, func() bool {
		return d.round(ctx, namespace, selector)
	})
	if recovered {
		log.Info("[Recovery]: Disk write performance has recovered for all pods")
	} else {
		log.Error("[Recovery]: Timeout, disk write performance did not recover in time")
	}
	return recovered
}

func (d *diskChecker) round(ctx context.Context, namespace, selector string) bool {
	pods, err := status.GetPodList(ctx, namespace, selector, d.oracle.Clients)
	if err != nil || len(pods) == 0 {
		log.Warnf("[Recovery]: Unable to list target pods, err: %v", err)
		return false
	}

	allOK := true
	for _, pod := range pods {
		ok := d.podWriteSpeedOK(ctx, namespace, pod.Name)
		d.cleanup(ctx, namespace, pod.Name)
		if !ok {
			allOK = false
		}
	}
	return allOK
}

func (d *diskChecker) podWriteSpeedOK(ctx context.Context, namespace, podName string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, d.oracle.ProbeTimeout)
	defer cancel()

	output, err := d.oracle.Exec.Exec(probeCtx, namespace, podName, "", []string{"sh", "-c", diskWriteScript})
	if err != nil {
		log.Warnf("[Recovery]: Disk write test failed for %v, err: %v", podName, err)
		return false
	}
	output = strings.TrimSpace(output)
	if output == "" {
		log.Warnf("[Recovery]: No output from disk write test in %v", podName)
		return false
	}

	lines := strings.Split(output, "\n")
	durationMs, err := strconv.Atoi(strings.TrimSpace(lines[len(lines)-1]))
	if err != nil {
		log.Warnf("[Recovery]: Unparsable disk write duration from %v: %v", podName, lines[len(lines)-1])
		return false
	}
	if durationMs < minWriteDurationMs {
		durationMs = minWriteDurationMs
	}
	speed := float64(diskTestSizeMB) / (float64(durationMs) / 1000)

	if speed < d.minWriteMBps {
		log.Warnf("[Recovery]: Write speed too low for %v: %.2f MB/s < %.0f MB/s", podName, speed, d.minWriteMBps)
		return false
	}
	log.Infof("[Recovery]: Write speed for %v: %.2f MB/s", podName, speed)
	return true
}

// cleanup removes the test artifact regardless of the probe's outcome
func (d *diskChecker) cleanup(ctx context.Context, namespace, podName string) {
	cleanupCtx, cancel := context.WithTimeout(ctx, d.oracle.ProbeTimeout)
	defer cancel()
	if _, err := d.oracle.Exec.Exec(cleanupCtx, namespace, podName, "", []string{"rm", "-f", diskTestFile}); err != nil {
		log.Warnf("[Recovery]: Unable to remove disk test file from %v, err: %v", podName, err)
	}
}
