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

// GroqLLM streams chat completions from Groq's OpenAI-compatible endpoint,
// reusing go-openai's client with a retargeted base URL rather than
// hand-rolling another HTTP/SSE client.
type GroqLLM struct {
	client *openai.Client
	model  string
}

func NewGroqLLM(apiKey string, model string) *GroqLLM {
	if model == "" {
		model = "llama3-70b-8192"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = "https://api.groq.com/openai/v1"
	return &GroqLLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (l *GroqLLM) Name() string {
	return "groq-llm"
}

func (l *GroqLLM) Generate(ctx context.Context, sessionID string, messages []orchestrator.Message, lang orchestrator.Language, token *orchestrator.CancellationToken) (<-chan orchestrator.LLMStreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:    l.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	stream, err := l.client.CreateChatCompletionStream(token.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("groq: create stream: %w", err)
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
				sendEvent(out, token, orchestrator.LLMStreamEvent{Err: fmt.Errorf("groq: %w", err)})
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
