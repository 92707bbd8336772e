package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/action"
	"github.com/chaosmend/chaosmend-go/pkg/campaign"
	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/environment"
	"github.com/chaosmend/chaosmend-go/pkg/injection"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/model"
	"github.com/chaosmend/chaosmend-go/pkg/probe"
	"github.com/chaosmend/chaosmend-go/pkg/recovery"
	"github.com/chaosmend/chaosmend-go/pkg/remediation"
	"github.com/chaosmend/chaosmend-go/pkg/restore"
	"github.com/chaosmend/chaosmend-go/pkg/result"
	"github.com/chaosmend/chaosmend-go/pkg/telemetry"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/chaosmend/chaosmend-go/pkg/utils/exec"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "campaign",
		Short:         "Run a chaos remediation campaign against a Kubernetes test bed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Campaign failed, err: %v", err)
	}
}

func run(ctx context.Context) error {
	details := types.CampaignDetails{}
	environment.GetENV(&details)

	clientSets := clients.ClientSets{}
	if err := clientSets.GenerateClientSetFromKubeConfig(details.Kubeconfig); err != nil {
		return err
	}

	localRunner := shell.LocalRunner{}
	sampler := metrics.NewKubectlSampler(localRunner)
	executor := exec.PodCommand{Clients: clientSets}

	oracle := recovery.New(clientSets, sampler, executor)

	injector := injection.New(clientSets)

	index, err := restore.NewIndex(details.ManifestPath)
	if err != nil {
		return err
	}
	restorer := restore.New(clientSets, sampler, index)

	playbooks := action.New(".")
	if err := playbooks.WriteInventory(); err != nil {
		return err
	}

	modelClient := model.NewOpenAIClient(
		types.Getenv("OPENAI_API_KEY", ""),
		details.ModelBaseURL,
		details.Model,
		details.ModelStream,
		details.ModelToolFallback,
	)

	// the loop verifies on half the recovery budget; the campaign's final
	// check spends the full budget
	verify := func(ctx context.Context, spec types.FailureSpec) bool {
		timeout := time.Duration(details.RecoveryTimeout) * time.Second / 2
		return oracle.Check(ctx, spec.Namespace, spec.Selector(), spec.Kind, timeout)
	}
	loop := remediation.New(modelClient, probe.New(), playbooks, verify)
	loop.AllowProbing = details.Method != environment.MethodOneshot
	loop.MaxRetries = details.MaxRetries
	loop.SettleDelay = time.Duration(details.SettleDelay) * time.Second
	loop.RuntimeEnv = details.Env

	observer := telemetry.New()
	observer.Serve(details.MetricsAddr)

	campaignRunner := &campaign.Runner{
		Details:  details,
		Oracle:   oracle,
		Injector: injector,
		Loop:     loop,
		Restorer: restorer,
		Store:    result.NewStore(details.SavePath),
		Deployer: &environment.Deployer{Clients: clientSets, Runner: localRunner, Sampler: sampler},
		Metrics:  observer,
	}

	_, err = campaignRunner.Run(ctx)
	return err
}
