package types

import (
	"os"
)

// FailureKind identifies one of the supported disruption categories
type FailureKind string

const (
	CPUStress      FailureKind = "cpu-stress"
	MemoryStress   FailureKind = "memory-stress"
	PodFail        FailureKind = "pod-fail"
	NetworkLoss    FailureKind = "network-loss"
	NetworkDelay   FailureKind = "network-delay"
	DiskIO         FailureKind = "disk-io"
	PodConfigError FailureKind = "pod-config-error"
)

const (
	// SuccessStatus marks the verdict of a remediated experiment
	SuccessStatus string = "success"
	// FailedStatus marks the verdict of an unremediated experiment
	FailedStatus string = "failed"
)

// InjectionOutcome records what happened at the injection phase of a slot
type InjectionOutcome string

const (
	Injected          InjectionOutcome = "injected"
	InjectionFailed   InjectionOutcome = "injection_failed"
	InjectionTimedOut InjectionOutcome = "injection_timed_out"
)

// FailureKinds lists all supported failure kinds in a fixed order
func FailureKinds() []FailureKind {
	return []FailureKind{
		CPUStress,
		MemoryStress,
		PodFail,
		NetworkLoss,
		NetworkDelay,
		DiskIO,
		PodConfigError,
	}
}

// IsValid reports whether k names a supported failure kind
func (k FailureKind) IsValid() bool {
	for _, kind := range FailureKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// FailureSpec is the immutable (kind, target, namespace) triple chosen for one experiment
type FailureSpec struct {
	Kind      FailureKind
	Target    string
	Namespace string
}

// Selector returns the label selector matching the targeted workload's pods
func (f FailureSpec) Selector() string {
	return "app=" + f.Target
}

// CampaignDetails collects all the campaign-related tunables
type CampaignDetails struct {
	Experiments       int
	Namespace         string
	Env               string
	WaitInterval      int
	InjectionTimeout  int
	RecoveryTimeout   int
	SettleDelay       int
	MaxRetries        int
	StrictRestart     bool
	Method            string
	Model             string
	ModelBaseURL      string
	ModelStream       bool
	ModelToolFallback bool
	SavePath          string
	ManifestPath      string
	ExperimentPath    string
	Kubeconfig        string
	MetricsAddr       string
}

// Getenv fetches the env var value of key, falling back to the given default
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	return value
}
