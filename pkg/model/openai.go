package model

import (
	"context"
	"errors"
	"io"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient speaks the chat completion protocol against any
// OpenAI-compatible endpoint, including local inference servers
type OpenAIClient struct {
	client       *openai.Client
	model        string
	stream       bool
	toolFallback bool
}

// NewOpenAIClient builds a client for the given endpoint. An empty baseURL
// targets the hosted API. With toolFallback set the tool catalog is rendered
// into the prompt instead of the tools array, for endpoints without native
// tool calling.
func NewOpenAIClient(apiKey, baseURL, model string, stream, toolFallback bool) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(config),
		model:        model,
		stream:       stream,
		toolFallback: toolFallback,
	}
}

// Complete asks for one completion over the conversation so far. An empty
// reply is retried once before being handed back.
func (c *OpenAIClient) Complete(ctx context.Context, messages []transcript.Message, tools []Tool) (Reply, error) {
	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(messages),
		Tools:    toChatTools(tools),
	}
	if c.toolFallback && len(tools) > 0 {
		request.Messages = toChatMessages(withToolPrompt(messages, tools))
		request.Tools = nil
	}
	reply, err := c.completeRequest(ctx, request)
	if err == nil && reply.Content == "" && len(reply.ToolCalls) == 0 {
		log.Warn("[Model]: Empty reply, retrying once")
		return c.completeRequest(ctx, request)
	}
	return reply, err
}

func (c *OpenAIClient) completeRequest(ctx context.Context, request openai.ChatCompletionRequest) (Reply, error) {
	if c.stream {
		return c.completeStream(ctx, request)
	}
	return c.completeOnce(ctx, request)
}

func (c *OpenAIClient) completeOnce(ctx context.Context, request openai.ChatCompletionRequest) (Reply, error) {
	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return Reply{}, cerrors.ModelTransport{Reason: err.Error()}
	}
	if len(response.Choices) == 0 {
		return Reply{}, cerrors.ModelTransport{Reason: "completion returned no choices"}
	}

	message := response.Choices[0].Message
	reply := Reply{Content: message.Content}
	for _, call := range message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return reply, nil
}

func (c *OpenAIClient) completeStream(ctx context.Context, request openai.ChatCompletionRequest) (Reply, error) {
	request.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return Reply{}, cerrors.ModelTransport{Reason: err.Error()}
	}
	defer stream.Close()

	acc := newStreamAccumulator()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warnf("[Model]: Stream interrupted, keeping partial reply, err: %v", err)
			break
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		acc.fold(chunk.Choices[0].Delta)
	}
	return acc.reply(), nil
}

func toChatMessages(messages []transcript.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		})
	}
	return out
}

func toChatTools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return out
}
