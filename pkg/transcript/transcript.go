// Package transcript keeps the append-only conversation record exchanged with
// the language model during a remediation session.
package transcript

import "encoding/json"

// Conversation roles, matching the chat completion wire format
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the conversation
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Log is the ordered record of a remediation conversation. Turns are only
// ever appended, earlier turns are never rewritten.
type Log struct {
	messages []Message
}

// NewLog starts a conversation seeded with the system prompt
func NewLog(systemPrompt string) *Log {
	l := &Log{}
	if systemPrompt != "" {
		l.Append(RoleSystem, systemPrompt)
	}
	return l
}

// Append records one turn at the end of the log
func (l *Log) Append(role, content string) {
	l.messages = append(l.messages, Message{Role: role, Content: content})
}

// AppendMessage records a fully-formed turn, used for tool result turns that
// carry a tool call id
func (l *Log) AppendMessage(msg Message) {
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of the turns so far; callers cannot mutate the log
// through the returned slice
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Persisted returns the JSON-ready view of the conversation for the result
// record
func (l *Log) Persisted() []Message {
	return l.Messages()
}

// Len reports the number of recorded turns
func (l *Log) Len() int {
	return len(l.messages)
}

// EstimateTokens approximates the token footprint of the conversation as the
// total JSON-encoded character count divided by four
func (l *Log) EstimateTokens() int {
	total := 0
	for _, msg := range l.messages {
		raw, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		total += len(raw)
	}
	return total / 4
}
