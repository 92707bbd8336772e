// Package campaign orchestrates a sequence of chaos experiments: inject a
// failure, confirm it manifested, let the remediation loop fix it, verify,
// restore the environment, and record the outcome.
package campaign

import (
	"context"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/environment"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/telemetry"
	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	logrus "github.com/sirupsen/logrus"
)

const (
	// manifestTimeout is the short oracle timeout used while polling for
	// the injected failure to manifest
	manifestTimeout = 5 * time.Second
	// maxSlotRetries bounds baseline and strict-restart retries of a slot
	maxSlotRetries = 2
)

// HealthOracle answers whether the workload recovered from a failure kind
type HealthOracle interface {
	Check(ctx context.Context, namespace, selector string, kind types.FailureKind, timeout time.Duration) bool
}

// FaultInjector applies and removes failures
type FaultInjector interface {
	Inject(ctx context.Context, kind types.FailureKind, target, namespace string) error
	Stop(ctx context.Context, kind types.FailureKind, namespace string) error
}

// Remediator runs the model-driven remediation loop for one failure
type Remediator interface {
	Remediate(ctx context.Context, spec types.FailureSpec) (*transcript.Log, int, bool)
}

// ManifestRestorer returns a workload to its recorded original state
type ManifestRestorer interface {
	Restore(ctx context.Context, namespace, app string) error
}

// RecordStore persists one experiment record
type RecordStore interface {
	Save(spec types.FailureSpec, sequenceNo int, status string, attempts, tokens int, elapsed time.Duration, conversation *transcript.Log) error
}

// EnvDeployer redeploys the whole test bed
type EnvDeployer interface {
	Deploy(ctx context.Context, env, namespace string) error
}

// Runner drives one campaign to completion
type Runner struct {
	Details  types.CampaignDetails
	Oracle   HealthOracle
	Injector FaultInjector
	Loop     Remediator
	Restorer ManifestRestorer
	Store    RecordStore
	Deployer EnvDeployer
	Metrics  *telemetry.Metrics
}

// Run executes every experiment slot and logs the aggregate summary. No
// experiment outcome terminates the campaign; only an invalid plan is an
// error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	plan, err := r.loadPlan()
	if err != nil {
		return Summary{}, err
	}
	log.Infof("[Campaign]: Starting campaign of %d experiments against %v", len(plan), r.Details.Env)

	summary := Summary{}
	for i, slot := range plan {
		if ctx.Err() != nil {
			log.Warn("[Campaign]: Campaign cancelled, stopping early")
			break
		}
		summary.Record(r.runSlot(ctx, i+1, slot))
	}

	summary.Log()
	return summary, nil
}

// slot is one planned experiment; an empty target is resolved at run time
type slot struct {
	kind   types.FailureKind
	target string
}

func (r *Runner) runSlot(ctx context.Context, sequenceNo int, planned slot) Outcome {
	outcome := Outcome{Kind: planned.kind, Status: types.FailedStatus}

	target := planned.target
	if target == "" {
		var err error
		target, err = environment.RandomService(r.Details.Env, planned.kind)
		if err != nil {
			log.Errorf("[Campaign]: Unable to pick a target for %v, err: %v", planned.kind, err)
			return outcome
		}
	}
	spec := types.FailureSpec{Kind: planned.kind, Target: target, Namespace: r.Details.Namespace}
	outcome.Target = target
	log.Infof("[Campaign]: Experiment %d: %v on %v", sequenceNo, spec.Kind, spec.Target)

	for retries := 0; ; retries++ {
		if !r.baselineHealthy(ctx, spec) {
			if retries >= maxSlotRetries {
				log.Errorf("[Campaign]: Baseline for %v never settled, abandoning slot", spec.Target)
				return outcome
			}
			log.Warnf("[Campaign]: Baseline unhealthy, redeploying %v", r.Details.Env)
			r.redeploy(ctx)
			continue
		}

		injection := r.injectAndConfirm(ctx, spec)
		outcome.Injection = injection
		if injection == types.Injected {
			break
		}
		r.Metrics.ObserveInjectionFailure(spec.Kind)
		if injection == types.InjectionTimedOut && r.Details.StrictRestart && retries < maxSlotRetries {
			log.Warnf("[Campaign]: Injection did not manifest, strict restart of %v", r.Details.Env)
			r.stopInjection(ctx, spec)
			r.redeploy(ctx)
			continue
		}
		r.stopInjection(ctx, spec)
		log.Errorf("[Campaign]: Injection of %v on %v failed (%v), abandoning slot", spec.Kind, spec.Target, injection)
		return outcome
	}

	outcome = r.remediate(ctx, spec, outcome)

	r.stopInjection(ctx, spec)
	if err := r.Restorer.Restore(ctx, spec.Namespace, spec.Target); err != nil {
		rootCause, errorCode := cerrors.GetRootCauseAndErrorCode(err)
		log.ErrorWithValues("[Campaign]: Restore of "+spec.Target+" failed", logrus.Fields{
			"errorCode": string(errorCode),
			"reason":    rootCause,
		})
	}

	if err := r.Store.Save(spec, sequenceNo, outcome.Status, outcome.Attempts, outcome.Tokens, outcome.Elapsed, outcome.Conversation); err != nil {
		log.Errorf("[Campaign]: Unable to persist record, err: %v", err)
	}
	r.Metrics.ObserveExperiment(spec.Kind, outcome.Status, outcome.Attempts, outcome.Elapsed)
	return outcome
}

func (r *Runner) remediate(ctx context.Context, spec types.FailureSpec, outcome Outcome) Outcome {
	start := time.Now()
	conversation, attempts, _ := r.Loop.Remediate(ctx, spec)
	outcome.Elapsed = time.Since(start)
	outcome.Attempts = attempts
	outcome.Conversation = conversation
	if conversation != nil {
		outcome.Tokens = conversation.EstimateTokens()
	}

	// the loop's own verdict is advisory; the full-timeout oracle check is
	// the authoritative one
	recoveryTimeout := time.Duration(r.Details.RecoveryTimeout) * time.Second
	if r.Oracle.Check(ctx, spec.Namespace, spec.Selector(), spec.Kind, recoveryTimeout) {
		outcome.Status = types.SuccessStatus
		log.Infof("[Campaign]: %v on %v remediated in %v (%d attempts)", spec.Kind, spec.Target, outcome.Elapsed.Round(time.Second), attempts)
	} else {
		log.Errorf("[Campaign]: %v on %v was not remediated", spec.Kind, spec.Target)
	}
	return outcome
}

// baselineHealthy asks the pod readiness predicate before touching anything
func (r *Runner) baselineHealthy(ctx context.Context, spec types.FailureSpec) bool {
	waitInterval := time.Duration(r.Details.WaitInterval) * time.Second
	return r.Oracle.Check(ctx, spec.Namespace, spec.Selector(), types.PodFail, manifestTimeout+waitInterval)
}

// injectAndConfirm applies the fault and polls until the kind's own
// predicate reports the workload unhealthy, proving the fault manifested
func (r *Runner) injectAndConfirm(ctx context.Context, spec types.FailureSpec) types.InjectionOutcome {
	if err := r.Injector.Inject(ctx, spec.Kind, spec.Target, spec.Namespace); err != nil {
		rootCause, errorCode := cerrors.GetRootCauseAndErrorCode(err)
		log.ErrorWithValues("[Campaign]: Injection failed", logrus.Fields{
			"errorCode": string(errorCode),
			"reason":    rootCause,
		})
		return types.InjectionFailed
	}

	waitInterval := time.Duration(r.Details.WaitInterval) * time.Second
	deadline := time.Now().Add(time.Duration(r.Details.InjectionTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return types.InjectionTimedOut
		}
		if !r.Oracle.Check(ctx, spec.Namespace, spec.Selector(), spec.Kind, manifestTimeout) {
			log.Infof("[Campaign]: %v manifested on %v", spec.Kind, spec.Target)
			return types.Injected
		}
		time.Sleep(waitInterval)
	}
	log.Warnf("[Campaign]: %v never manifested on %v", spec.Kind, spec.Target)
	return types.InjectionTimedOut
}

func (r *Runner) stopInjection(ctx context.Context, spec types.FailureSpec) {
	if err := r.Injector.Stop(ctx, spec.Kind, spec.Namespace); err != nil {
		log.Warnf("[Campaign]: Unable to stop injection of %v, err: %v", spec.Kind, err)
	}
}

func (r *Runner) redeploy(ctx context.Context) {
	if r.Deployer == nil {
		log.Warn("[Campaign]: No deployer configured, cannot redeploy the environment")
		return
	}
	if err := r.Deployer.Deploy(ctx, r.Details.Env, r.Details.Namespace); err != nil {
		log.Errorf("[Campaign]: Redeploy failed, err: %v", err)
	}
}

// loadPlan builds the experiment list, either from the experiment file or as
// N random draws
func (r *Runner) loadPlan() ([]slot, error) {
	if r.Details.ExperimentPath != "" {
		return loadPlanFile(r.Details.ExperimentPath)
	}
	if r.Details.Experiments <= 0 {
		return nil, cerrors.Generic{Phase: "campaign", Reason: "experiment count must be positive"}
	}
	plan := make([]slot, 0, r.Details.Experiments)
	for i := 0; i < r.Details.Experiments; i++ {
		plan = append(plan, slot{kind: environment.RandomFailure()})
	}
	return plan, nil
}
