// Package model talks to an OpenAI-compatible chat completion endpoint and
// normalizes its replies into tool invocations the remediation loop can act
// on.
package model

import (
	"context"

	"github.com/chaosmend/chaosmend-go/pkg/transcript"
)

// Tool describes one function the model may invoke, in JSON schema form
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is one function invocation extracted from a reply
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Reply is a normalized model turn: free text plus zero or more tool calls
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Client produces one completion for the conversation so far
type Client interface {
	Complete(ctx context.Context, messages []transcript.Message, tools []Tool) (Reply, error)
}
