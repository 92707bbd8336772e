package model

import (
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// streamAccumulator reassembles a streamed reply. Tool call arguments arrive
// as fragments spread over many chunks, keyed by the call's index within the
// reply, and must be concatenated in arrival order.
type streamAccumulator struct {
	content   strings.Builder
	calls     map[int]*ToolCall
	lastIndex int
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{calls: map[int]*ToolCall{}}
}

func (a *streamAccumulator) fold(delta openai.ChatCompletionStreamChoiceDelta) {
	a.content.WriteString(delta.Content)
	for _, call := range delta.ToolCalls {
		index := a.lastIndex
		if call.Index != nil {
			index = *call.Index
			a.lastIndex = index
		}
		accumulated, ok := a.calls[index]
		if !ok {
			accumulated = &ToolCall{}
			a.calls[index] = accumulated
		}
		if call.ID != "" {
			accumulated.ID = call.ID
		}
		if call.Function.Name != "" {
			accumulated.Name += call.Function.Name
		}
		accumulated.Arguments += call.Function.Arguments
	}
}

func (a *streamAccumulator) reply() Reply {
	indexes := make([]int, 0, len(a.calls))
	for index := range a.calls {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	reply := Reply{Content: a.content.String()}
	for _, index := range indexes {
		reply.ToolCalls = append(reply.ToolCalls, *a.calls[index])
	}
	return reply
}
