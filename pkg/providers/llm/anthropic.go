package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// AnthropicLLM streams completions from the Messages API. Every call to
// Generate opens its own stream; the returned channel is closed once a
// terminal Result or Err event has been delivered.
type AnthropicLLM struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	if model == "" {
		model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	return &AnthropicLLM{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (l *AnthropicLLM) Name() string {
	return "anthropic-llm"
}

func (l *AnthropicLLM) Generate(ctx context.Context, sessionID string, messages []orchestrator.Message, lang orchestrator.Language, token *orchestrator.CancellationToken) (<-chan orchestrator.LLMStreamEvent, error) {
	var system string
	var turns []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     l.model,
		Messages:  turns,
		MaxTokens: 1024,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	streamCtx := token.Context()
	stream := l.client.Messages.NewStreaming(streamCtx, params)

	out := make(chan orchestrator.LLMStreamEvent, 16)
	go func() {
		defer close(out)
		started := time.Now()

		var message anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				sendEvent(out, token, orchestrator.LLMStreamEvent{Err: fmt.Errorf("anthropic: accumulate: %w", err)})
				return
			}

			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if delta.Delta.Text != "" {
					sendEvent(out, token, orchestrator.LLMStreamEvent{Token: delta.Delta.Text})
				}
			}
		}

		if err := stream.Err(); err != nil {
			sendEvent(out, token, orchestrator.LLMStreamEvent{Err: fmt.Errorf("anthropic: %w", err)})
			return
		}

		var text string
		for _, block := range message.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		sendEvent(out, token, orchestrator.LLMStreamEvent{Result: &orchestrator.LLMResult{
			Content:      text,
			Model:        string(l.model),
			TokensUsed:   int(message.Usage.InputTokens + message.Usage.OutputTokens),
			ProcessingMS: time.Since(started).Milliseconds(),
		}})
	}()

	return out, nil
}

// sendEvent delivers ev unless the token is already cancelled, in which
// case the session has moved on and the event would only be discarded.
func sendEvent(out chan<- orchestrator.LLMStreamEvent, token *orchestrator.CancellationToken, ev orchestrator.LLMStreamEvent) {
	select {
	case out <- ev:
	case <-token.Done():
	}
}
