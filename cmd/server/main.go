package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
	"github.com/lokutor-ai/converso/pkg/persistence"
	llmProvider "github.com/lokutor-ai/converso/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/converso/pkg/providers/stt"
	"github.com/lokutor-ai/converso/pkg/telemetry"
	"github.com/lokutor-ai/converso/pkg/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	orchLogger := orchestrator.NewSlogLogger(logger)

	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	postgresDSN := os.Getenv("DATABASE_URL")

	llmProviderName := os.Getenv("LLM_PROVIDER")
	if llmProviderName == "" {
		llmProviderName = "groq"
	}

	if deepgramKey == "" {
		logger.Error("DEEPGRAM_API_KEY must be set")
		os.Exit(1)
	}
	stt := sttProvider.NewDeepgramSTT(deepgramKey)

	var llm orchestrator.LLMProvider
	switch llmProviderName {
	case "anthropic":
		if anthropicKey == "" {
			logger.Error("ANTHROPIC_API_KEY must be set for anthropic LLM")
			os.Exit(1)
		}
		llm = llmProvider.NewAnthropicLLM(anthropicKey, "")
	case "openai":
		if openaiKey == "" {
			logger.Error("OPENAI_API_KEY must be set for openai LLM")
			os.Exit(1)
		}
		llm = llmProvider.NewOpenAILLM(openaiKey, "")
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			logger.Error("GROQ_API_KEY must be set for groq LLM")
			os.Exit(1)
		}
		llm = llmProvider.NewGroqLLM(groqKey, "")
	}

	cfg := orchestrator.DefaultConfig()

	orch := orchestrator.New(stt, llm, cfg).WithLogger(orchLogger)

	if postgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := persistence.NewPostgres(ctx, postgresDSN)
		cancel()
		if err != nil {
			logger.Warn("persistence disabled: could not connect to postgres", "error", err)
		} else {
			orch = orch.WithPersistence(store)
			defer store.Close()
		}
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Warn("telemetry disabled: could not build metrics", "error", err)
	} else {
		orch = orch.WithTelemetry(metrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go orch.RunIdleSweep(ctx, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/ws/stream", ws.NewServer(orch, orchLogger, cfg.SampleRate, cfg.Channels).Handler())
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("converso server listening", "addr", addr, "llm", llmProviderName)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
