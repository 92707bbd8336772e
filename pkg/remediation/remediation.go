// Package remediation drives the conversation with the language model that
// turns an observed failure into an executed ansible playbook, and verifies
// the outcome against the recovery oracle.
package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/model"
	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	"github.com/chaosmend/chaosmend-go/pkg/types"
)

const (
	// DefaultMaxRetries is the number of extra draft/execute/verify rounds
	// after the first attempt
	DefaultMaxRetries = 1
	// DefaultSettleDelay is the pause between playbook execution and
	// recovery verification
	DefaultSettleDelay = 10 * time.Second
	// maxDraftRounds bounds the probe/solicit exchange within one attempt
	maxDraftRounds = 8
)

// Tool names offered to the model
const (
	toolPrintPlaybook = "print_playbook"
	toolProbeSystem   = "probe_system"
)

// Prober runs the model's diagnostic commands and reports the transcript
type Prober interface {
	Run(ctx context.Context, cmds string) string
}

// PlaybookExecutor runs a proposed playbook and reports success plus output
type PlaybookExecutor interface {
	Run(ctx context.Context, playbook string) (bool, string)
}

// Verifier answers whether the workload named by the failure spec has recovered
type Verifier func(ctx context.Context, spec types.FailureSpec) bool

// Loop is the remediation state machine. Exactly one experiment's failure is
// remediated per Remediate call; the loop is strictly sequential.
type Loop struct {
	Model    model.Client
	Prober   Prober
	Executor PlaybookExecutor
	Verify   Verifier

	// AllowProbing selects the probing strategy; when false the model must
	// answer with a playbook in a single draft
	AllowProbing bool
	MaxRetries   int
	SettleDelay  time.Duration
	RuntimeEnv   string
}

// New builds a loop with the default bounds
func New(client model.Client, prober Prober, executor PlaybookExecutor, verify Verifier) *Loop {
	return &Loop{
		Model:        client,
		Prober:       prober,
		Executor:     executor,
		Verify:       verify,
		AllowProbing: true,
		MaxRetries:   DefaultMaxRetries,
		SettleDelay:  DefaultSettleDelay,
	}
}

// Remediate runs bounded draft/execute/verify rounds until the oracle reports
// recovery or the retry budget is spent. It returns the full conversation
// log, the number of attempts consumed, and whether recovery was verified.
func (l *Loop) Remediate(ctx context.Context, spec types.FailureSpec) (*transcript.Log, int, bool) {
	conversation := transcript.NewLog(l.systemPrompt())
	conversation.Append(transcript.RoleUser, l.incidentPrompt(spec))

	attempts := 0
	for attempt := 0; attempt <= l.MaxRetries; attempt++ {
		attempts = attempt + 1
		log.Infof("[Remediation]: Attempt %d of %d", attempts, l.MaxRetries+1)

		playbook := l.draft(ctx, conversation)
		executed, output := l.Executor.Run(ctx, playbook)
		conversation.Append(transcript.RoleUser, executionReport(executed, output))

		l.settle(ctx)

		if l.Verify(ctx, spec) {
			log.Infof("[Remediation]: Recovery verified after attempt %d", attempts)
			return conversation, attempts, true
		}
		if attempt < l.MaxRetries {
			conversation.Append(transcript.RoleUser, retryPrompt(executed, output))
		}
	}

	log.Error("[Remediation]: Retry budget exhausted without verified recovery")
	return conversation, attempts, false
}

// draft solicits the model until it submits a playbook. Probe requests are
// served in between when the probing strategy is active. A malformed
// submission yields an empty playbook so the attempt still runs its course.
func (l *Loop) draft(ctx context.Context, conversation *transcript.Log) string {
	for round := 0; round < maxDraftRounds; round++ {
		reply, err := l.Model.Complete(ctx, conversation.Messages(), l.tools())
		if err != nil {
			log.Errorf("[Remediation]: Model request failed, err: %v", err)
			conversation.Append(transcript.RoleUser, fmt.Sprintf("model request failed: %v", err))
			return ""
		}

		conversation.Append(transcript.RoleAssistant, assistantTurn(reply))

		calls := reply.ToolCalls
		if len(calls) == 0 {
			calls = model.ParseToolCalls(reply.Content)
		}
		if len(calls) == 0 {
			conversation.Append(transcript.RoleUser, "No tool call found. Use print_playbook to submit your remediation playbook.")
			continue
		}

		probed := false
		for _, call := range calls {
			switch call.Name {
			case toolPrintPlaybook:
				code, err := extractCode(call.Arguments)
				if err != nil {
					log.Warnf("[Remediation]: Malformed playbook submission, err: %v", err)
					conversation.Append(transcript.RoleUser, "Error Code: the playbook arguments could not be parsed, an empty playbook will be executed")
					return ""
				}
				return code
			case toolProbeSystem:
				if !l.AllowProbing {
					conversation.Append(transcript.RoleUser, "Probing is not available. Submit a playbook with print_playbook.")
					continue
				}
				cmds, err := extractCmds(call.Arguments)
				if err != nil {
					log.Warnf("[Remediation]: Skipping probe with malformed arguments, err: %v", err)
					continue
				}
				conversation.Append(transcript.RoleUser, l.Prober.Run(ctx, cmds))
				probed = true
			default:
				log.Warnf("[Remediation]: Ignoring unknown tool %v", call.Name)
			}
		}
		if !probed {
			conversation.Append(transcript.RoleUser, "Submit your remediation playbook with print_playbook.")
		}
	}

	log.Warn("[Remediation]: Draft round budget spent without a playbook")
	conversation.Append(transcript.RoleUser, "Error Code: no playbook was submitted, an empty playbook will be executed")
	return ""
}

func (l *Loop) settle(ctx context.Context) {
	delay := l.SettleDelay
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (l *Loop) tools() []model.Tool {
	tools := []model.Tool{{
		Name:        toolPrintPlaybook,
		Description: "Submit the final ansible playbook that remediates the failure. The playbook runs against localhost with kubectl access to the cluster.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "complete ansible playbook in YAML",
				},
			},
			"required": []string{"code"},
		},
	}}
	if l.AllowProbing {
		tools = append(tools, model.Tool{
			Name:        toolProbeSystem,
			Description: "Run read-only shell diagnostics against the cluster before deciding on a fix. Separate multiple commands with semicolons.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cmds": map[string]interface{}{
						"type":        "string",
						"description": "semicolon separated shell commands",
					},
				},
				"required": []string{"cmds"},
			},
		})
	}
	return tools
}

func (l *Loop) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a site reliability engineer remediating failures in a Kubernetes cluster. ")
	b.WriteString("You fix problems by writing ansible playbooks that run on localhost with kubectl and full cluster access. ")
	if l.AllowProbing {
		b.WriteString("You may inspect the cluster with the probe_system tool before committing to a fix. ")
	}
	b.WriteString("When you are confident, submit exactly one playbook with the print_playbook tool.")
	if l.RuntimeEnv != "" {
		b.WriteString(" The cluster runs the " + l.RuntimeEnv + " application.")
	}
	return b.String()
}

func (l *Loop) incidentPrompt(spec types.FailureSpec) string {
	return fmt.Sprintf("A %s failure is affecting the %s workload in namespace %s. Diagnose and remediate it.",
		spec.Kind, spec.Target, spec.Namespace)
}

func assistantTurn(reply model.Reply) string {
	if len(reply.ToolCalls) == 0 {
		return reply.Content
	}
	var b strings.Builder
	b.WriteString(reply.Content)
	for _, call := range reply.ToolCalls {
		fmt.Fprintf(&b, "\n[tool call] %s(%s)", call.Name, call.Arguments)
	}
	return strings.TrimSpace(b.String())
}

func executionReport(executed bool, output string) string {
	status := "succeeded"
	if !executed {
		status = "failed"
	}
	return fmt.Sprintf("Playbook execution %s.\nOutput:\n%s", status, output)
}

func retryPrompt(executed bool, output string) string {
	status := "executed"
	if !executed {
		status = "failed to execute"
	}
	return fmt.Sprintf("The failure is still present after your playbook %s.\nExecution output was:\n%s\nRevise your approach and submit a new playbook.", status, output)
}

func extractCode(arguments string) (string, error) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Code) == "" {
		return "", fmt.Errorf("missing 'code' field")
	}
	return payload.Code, nil
}

func extractCmds(arguments string) (string, error) {
	var payload struct {
		Cmds string `json:"cmds"`
	}
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Cmds) == "" {
		return "", fmt.Errorf("missing 'cmds' field")
	}
	return payload.Cmds, nil
}
