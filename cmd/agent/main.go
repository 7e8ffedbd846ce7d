// cmd/agent is a manual local test harness: it captures the system
// microphone, feeds it through the orchestrator, and prints the session's
// events to the terminal. It has no audio output — this orchestrator
// streams text reply tokens, not synthesized speech.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/converso/pkg/audio"
	"github.com/lokutor-ai/converso/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/converso/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/converso/pkg/providers/stt"
)

const (
	sampleRate = 16000
	channels   = 1
	sessionID  = "local-agent-session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")

	if groqKey == "" {
		log.Fatal("GROQ_API_KEY must be set")
	}
	if deepgramKey == "" {
		log.Fatal("DEEPGRAM_API_KEY must be set")
	}

	lang := orchestrator.Language(os.Getenv("AGENT_LANGUAGE"))
	if lang == "" {
		lang = orchestrator.LanguageEn
	}

	stt := sttProvider.NewDeepgramSTT(deepgramKey)
	llm := llmProvider.NewGroqLLM(groqKey, "")

	cfg := orchestrator.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.Channels = channels
	cfg.Language = lang

	orch := orchestrator.New(stt, llm, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := orch.NewSession(ctx, sessionID, lang)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	go printEvents(session)

	var recorder *wavRecorder
	if recordPath := os.Getenv("AGENT_RECORD_WAV"); recordPath != "" {
		recorder = newWavRecorder(recordPath, sampleRate)
		defer recorder.flush()
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(_, input []byte, _ uint32) {
		if len(input) == 0 {
			return
		}
		if recorder != nil {
			recorder.write(input)
		}
		frame, err := orchestrator.NewAudioFrame(input, sampleRate, channels)
		if err != nil {
			return
		}
		if err := orch.PushFrame(ctx, sessionID, frame); err != nil {
			fmt.Printf("\r\033[K[error] push frame: %v\n", err)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Listening. Press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	_ = orch.EndSession(sessionID, "agent shutdown")
}

func printEvents(session *orchestrator.Session) {
	for ev := range session.Events() {
		switch ev.Type {
		case orchestrator.SinkTranscriptPartial:
			p := ev.Payload.(orchestrator.TranscriptPayload)
			fmt.Printf("\r\033[K[you, live] %s", p.Text)
		case orchestrator.SinkTranscriptFinal:
			p := ev.Payload.(orchestrator.TranscriptPayload)
			fmt.Printf("\r\033[K[you] %s\n", p.Text)
		case orchestrator.SinkAIThinking:
			fmt.Printf("\r\033[K[assistant] thinking...\n")
		case orchestrator.SinkAIDelta:
			fmt.Print(ev.Payload.(string))
		case orchestrator.SinkAIDone:
			fmt.Println()
		case orchestrator.SinkAIInterrupted:
			fmt.Printf("\r\033[K[interrupted]\n")
		case orchestrator.SinkError:
			fmt.Printf("\r\033[K[error] %v\n", ev.Payload)
		case orchestrator.SinkSessionStarted:
			fmt.Println("[session started]")
		case orchestrator.SinkSessionEnded:
			fmt.Println("[session ended]")
		}
	}
}

// wavRecorder accumulates raw captured PCM in memory and writes it as a
// single WAV file on flush. It exists purely for local debugging of the
// capture pipeline; nothing in the streaming path depends on it.
type wavRecorder struct {
	mu         sync.Mutex
	path       string
	sampleRate int
	pcm        []byte
}

func newWavRecorder(path string, sampleRate int) *wavRecorder {
	return &wavRecorder{path: path, sampleRate: sampleRate}
}

func (r *wavRecorder) write(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcm = append(r.pcm, chunk...)
}

func (r *wavRecorder) flush() {
	r.mu.Lock()
	pcm := r.pcm
	r.mu.Unlock()

	if len(pcm) == 0 {
		return
	}
	if err := os.WriteFile(r.path, audio.NewWavBuffer(pcm, r.sampleRate), 0644); err != nil {
		fmt.Printf("[error] writing recorded audio to %s: %v\n", r.path, err)
		return
	}
	fmt.Printf("[recorded session audio written to %s]\n", r.path)
}
