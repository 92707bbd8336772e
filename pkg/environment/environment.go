// Package environment resolves campaign configuration from the process
// environment and knows the service catalogs of the supported test beds.
package environment

import (
	"strconv"

	"github.com/chaosmend/chaosmend-go/pkg/types"
)

// GetENV fetches all the campaign tunables from the environment, applying
// defaults suited to a local chaos-mesh cluster
func GetENV(details *types.CampaignDetails) {
	details.Experiments, _ = strconv.Atoi(types.Getenv("EXPERIMENT_COUNT", "10"))
	details.Namespace = types.Getenv("TARGET_NAMESPACE", "default")
	details.Env = types.Getenv("RUNTIME_ENV", EnvSimpleMicro)
	details.WaitInterval, _ = strconv.Atoi(types.Getenv("WAIT_INTERVAL", "5"))
	details.InjectionTimeout, _ = strconv.Atoi(types.Getenv("INJECTION_TIMEOUT", "300"))
	details.RecoveryTimeout, _ = strconv.Atoi(types.Getenv("RECOVERY_TIMEOUT", "300"))
	details.SettleDelay, _ = strconv.Atoi(types.Getenv("SETTLE_DELAY", "10"))
	details.MaxRetries, _ = strconv.Atoi(types.Getenv("MAX_RETRIES", "1"))
	details.StrictRestart, _ = strconv.ParseBool(types.Getenv("STRICT_RESTART", "false"))
	details.Method = types.Getenv("REMEDIATION_METHOD", MethodProbing)
	details.Model = types.Getenv("MODEL_NAME", "gpt-4o")
	details.ModelBaseURL = types.Getenv("MODEL_BASE_URL", "")
	details.ModelStream, _ = strconv.ParseBool(types.Getenv("MODEL_STREAM", "false"))
	details.ModelToolFallback, _ = strconv.ParseBool(types.Getenv("MODEL_TOOL_FALLBACK", "false"))
	details.SavePath = types.Getenv("SAVE_PATH", "results")
	details.ManifestPath = types.Getenv("MANIFEST_PATH", "envs/"+details.Env+"/manifest.yaml")
	details.ExperimentPath = types.Getenv("EXPERIMENT_PATH", "")
	details.Kubeconfig = types.Getenv("KUBECONFIG", "")
	details.MetricsAddr = types.Getenv("METRICS_ADDR", "")
}

// Remediation strategies
const (
	MethodProbing = "probing"
	MethodOneshot = "oneshot"
)
