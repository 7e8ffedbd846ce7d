package llm

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

func TestGroqLLMGenerateStreamsTokensThenResult(t *testing.T) {
	server := newOpenAISSEServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","model":"llama3-70b-8192","choices":[{"index":0,"delta":{"content":"hello from groq"}}]}`,
	})
	defer server.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	l := &GroqLLM{client: openai.NewClientWithConfig(cfg), model: "llama3-70b-8192"}

	token := orchestrator.NewCancellationToken(context.Background())
	events, err := l.Generate(context.Background(), "sess-1", []orchestrator.Message{{Role: "user", Content: "hi"}}, "", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result *orchestrator.LLMResult
	for ev := range drain(t, events) {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		if ev.Result != nil {
			result = ev.Result
		}
	}

	if result == nil || result.Content != "hello from groq" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if l.Name() != "groq-llm" {
		t.Errorf("expected groq-llm, got %s", l.Name())
	}
}
