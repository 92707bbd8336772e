package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chaosmend/chaosmend-go/pkg/transcript"
)

// BuildToolPrompt renders the tool catalog as plain text for endpoints that
// do not implement native tool calling. The model is asked to answer with an
// Action/Action Input pair.
func BuildToolPrompt(tools []Tool) string {
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, tool := range tools {
		schema, _ := json.Marshal(tool.Parameters)
		fmt.Fprintf(&b, "- %s: %s\n  Input schema: %s\n", tool.Name, tool.Description, schema)
	}
	b.WriteString("\nTo use a tool, reply with exactly:\n")
	b.WriteString("Action: <tool name>\n")
	b.WriteString("Action Input: <JSON arguments on a single line>\n")
	return b.String()
}

// withToolPrompt appends the rendered tool catalog to the last message of the
// conversation, so an endpoint that ignores the tools array still learns the
// Action reply format. The input slice is left untouched.
func withToolPrompt(messages []transcript.Message, tools []Tool) []transcript.Message {
	if len(messages) == 0 {
		return messages
	}
	out := make([]transcript.Message, len(messages))
	copy(out, messages)
	last := &out[len(out)-1]
	last.Content = last.Content + "\n\n" + BuildToolPrompt(tools)
	return out
}

// ParseToolCalls extracts Action/Action Input pairs from a free-text reply.
// Returns nil when the reply contains no recognizable action.
func ParseToolCalls(content string) []ToolCall {
	var calls []ToolCall
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		name, ok := cutPrefix(lines[i], "Action:")
		if !ok || name == "" {
			continue
		}
		call := ToolCall{Name: name}
		for j := i + 1; j < len(lines); j++ {
			if input, ok := cutPrefix(lines[j], "Action Input:"); ok {
				call.Arguments = input
				i = j
				break
			}
		}
		calls = append(calls, call)
	}
	return calls
}

func cutPrefix(line, prefix string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), true
}
