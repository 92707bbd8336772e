package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestStreamAccumulatorFoldsContent(t *testing.T) {
	acc := newStreamAccumulator()
	acc.fold(openai.ChatCompletionStreamChoiceDelta{Content: "restarting "})
	acc.fold(openai.ChatCompletionStreamChoiceDelta{Content: "the pod"})

	assert.Equal(t, "restarting the pod", acc.reply().Content)
}

func TestStreamAccumulatorReassemblesToolCall(t *testing.T) {
	acc := newStreamAccumulator()
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(0), ID: "call_1", Function: openai.FunctionCall{Name: "print_playbook", Arguments: `{"co`}},
	}})
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(0), Function: openai.FunctionCall{Arguments: `de": "- hosts:`}},
	}})
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(0), Function: openai.FunctionCall{Arguments: ` local"}`}},
	}})

	reply := acc.reply()
	assert.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_1", reply.ToolCalls[0].ID)
	assert.Equal(t, "print_playbook", reply.ToolCalls[0].Name)
	assert.Equal(t, `{"code": "- hosts: local"}`, reply.ToolCalls[0].Arguments)
}

func TestStreamAccumulatorInterleavedCalls(t *testing.T) {
	acc := newStreamAccumulator()
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(0), ID: "call_a", Function: openai.FunctionCall{Name: "probe_system", Arguments: `{"cmds":`}},
		{Index: intPtr(1), ID: "call_b", Function: openai.FunctionCall{Name: "print_playbook", Arguments: `{"code":`}},
	}})
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(1), Function: openai.FunctionCall{Arguments: ` ""}`}},
		{Index: intPtr(0), Function: openai.FunctionCall{Arguments: ` "date"}`}},
	}})

	reply := acc.reply()
	assert.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, `{"cmds": "date"}`, reply.ToolCalls[0].Arguments)
	assert.Equal(t, `{"code": ""}`, reply.ToolCalls[1].Arguments)
}

func TestStreamAccumulatorMissingIndexContinuesLastCall(t *testing.T) {
	acc := newStreamAccumulator()
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Index: intPtr(0), ID: "call_1", Function: openai.FunctionCall{Name: "probe_system", Arguments: `{"cm`}},
	}})
	acc.fold(openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
		{Function: openai.FunctionCall{Arguments: `ds": "uptime"}`}},
	}})

	reply := acc.reply()
	assert.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, `{"cmds": "uptime"}`, reply.ToolCalls[0].Arguments)
}

func TestParseToolCalls(t *testing.T) {
	content := `The workload looks stressed, gathering data first.

Action: probe_system
Action Input: {"cmds": "kubectl get pods; kubectl top pod"}`

	calls := ParseToolCalls(content)
	assert.Len(t, calls, 1)
	assert.Equal(t, "probe_system", calls[0].Name)
	assert.Equal(t, `{"cmds": "kubectl get pods; kubectl top pod"}`, calls[0].Arguments)
}

func TestParseToolCallsNoAction(t *testing.T) {
	assert.Nil(t, ParseToolCalls("I will just describe the problem instead."))
}

func TestBuildToolPromptListsTools(t *testing.T) {
	prompt := BuildToolPrompt([]Tool{
		{Name: "print_playbook", Description: "emit the playbook", Parameters: map[string]interface{}{"type": "object"}},
	})

	assert.Contains(t, prompt, "print_playbook")
	assert.Contains(t, prompt, "Action Input:")
}

func TestWithToolPromptRewritesLastMessage(t *testing.T) {
	messages := []transcript.Message{
		{Role: transcript.RoleSystem, Content: "You are an SRE."},
		{Role: transcript.RoleUser, Content: "A cpu-stress failure is affecting cartservice."},
	}
	tools := []Tool{{Name: "probe_system", Description: "run diagnostics"}}

	out := withToolPrompt(messages, tools)

	assert.Equal(t, "You are an SRE.", out[0].Content)
	assert.Contains(t, out[1].Content, "A cpu-stress failure is affecting cartservice.")
	assert.Contains(t, out[1].Content, "probe_system")
	assert.Contains(t, out[1].Content, "Action Input:")
	// the live conversation must not pick up the catalog text
	assert.Equal(t, "A cpu-stress failure is affecting cartservice.", messages[1].Content)
}

func TestWithToolPromptEmptyConversation(t *testing.T) {
	assert.Empty(t, withToolPrompt(nil, []Tool{{Name: "probe_system"}}))
}

func TestCompleteToolFallbackRewritesRequest(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Action: probe_system\nAction Input: {\"cmds\": \"uptime\"}"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/v1", "local-model", false, true)
	reply, err := client.Complete(context.Background(), []transcript.Message{
		{Role: transcript.RoleUser, Content: "diagnose the failure"},
	}, []Tool{{Name: "probe_system", Description: "run diagnostics"}})

	require.NoError(t, err)
	// the endpoint sees the catalog in the prompt, not a tools array
	assert.Empty(t, got.Tools)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "diagnose the failure")
	assert.Contains(t, got.Messages[0].Content, "Action Input:")
	assert.Len(t, ParseToolCalls(reply.Content), 1)
}

func TestCompleteNativeToolsKeepsConversation(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"on it"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/v1", "local-model", false, false)
	_, err := client.Complete(context.Background(), []transcript.Message{
		{Role: transcript.RoleUser, Content: "diagnose the failure"},
	}, []Tool{{Name: "probe_system", Description: "run diagnostics"}})

	require.NoError(t, err)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "diagnose the failure", got.Messages[0].Content)
}
