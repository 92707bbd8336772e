package recovery

import (
	"context"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
)

// configChecker treats a resource misconfiguration as remediated only when
// both the CPU and the memory predicate are back in envelope
type configChecker struct {
	cpu    *cpuChecker
	memory *memoryChecker
}

func (c *configChecker) Check(ctx context.Context, namespace, selector string, timeout time.Duration) bool {
	log.Info("[Recovery]: Checking config error recovery across both resource dimensions")
	if !c.cpu.Check(ctx, namespace, selector, timeout) {
		return false
	}
	return c.memory.Check(ctx, namespace, selector, timeout)
}
