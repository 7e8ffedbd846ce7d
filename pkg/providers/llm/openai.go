package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// OpenAILLM streams chat completions via the Chat Completions streaming
// endpoint.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAILLM{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (l *OpenAILLM) Name() string {
	return "openai-llm"
}

func (l *OpenAILLM) Generate(ctx context.Context, sessionID string, messages []orchestrator.Message, lang orchestrator.Language, token *orchestrator.CancellationToken) (<-chan orchestrator.LLMStreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:    l.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	stream, err := l.client.CreateChatCompletionStream(token.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	out := make(chan orchestrator.LLMStreamEvent, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		started := time.Now()
		var content string
		var usage int

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				sendEvent(out, token, orchestrator.LLMStreamEvent{Err: fmt.Errorf("openai: %w", err)})
				return
			}
			if resp.Usage != nil {
				usage = resp.Usage.TotalTokens
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			content += delta
			sendEvent(out, token, orchestrator.LLMStreamEvent{Token: delta})
		}

		sendEvent(out, token, orchestrator.LLMStreamEvent{Result: &orchestrator.LLMResult{
			Content:      content,
			Model:        l.model,
			TokensUsed:   usage,
			ProcessingMS: time.Since(started).Milliseconds(),
		}})
	}()

	return out, nil
}

func toOpenAIMessages(messages []orchestrator.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
