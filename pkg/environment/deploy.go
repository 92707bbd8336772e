package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
)

const (
	// deployTimeout bounds the deploy script itself
	deployTimeout = 10 * time.Minute
	// settleTimeout and settleDelay bound the post-deploy readiness wait
	settleTimeout = 300
	settleDelay   = 5
)

// Deployer redeploys a test bed environment from its deploy script
type Deployer struct {
	Clients clients.ClientSets
	Runner  shell.Runner
	Sampler metrics.Sampler
}

// Deploy runs the environment's deploy script and blocks until every pod in
// the namespace is Running/Ready with metrics flowing
func (d *Deployer) Deploy(ctx context.Context, env, namespace string) error {
	if _, err := Lookup(env); err != nil {
		return err
	}
	log.Infof("[Environment]: Deploying %v into namespace %v", env, namespace)

	scriptCtx, cancel := context.WithTimeout(ctx, deployTimeout)
	defer cancel()

	result, err := d.Runner.Run(scriptCtx, "", "bash", fmt.Sprintf("envs/%s/deploy.sh", env))
	if err != nil {
		return cerrors.Generic{Phase: "environment", Reason: fmt.Sprintf("deploy script failed: %v", err)}
	}
	if result.ExitCode != 0 {
		return cerrors.Generic{Phase: "environment", Reason: "deploy script failed: " + result.Combined()}
	}

	if err := status.CheckPodsReady(ctx, namespace, "", settleTimeout, settleDelay, d.Clients); err != nil {
		return cerrors.Generic{Phase: "environment", Reason: fmt.Sprintf("environment did not settle: %v", err)}
	}
	if err := status.CheckMetricsAvailable(ctx, namespace, "", settleTimeout, settleDelay, d.Sampler); err != nil {
		return cerrors.Generic{Phase: "environment", Reason: fmt.Sprintf("metrics pipeline did not settle: %v", err)}
	}

	log.Infof("[Environment]: %v is up and observable", env)
	return nil
}
