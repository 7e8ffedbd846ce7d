package orchestrator

import "context"

// AudioFormat describes the wire format STT adapters should expect. The
// orchestrator always streams 16-bit LE PCM per spec, but adapters that
// wrap providers with format requirements of their own can use this to
// configure themselves at Start time.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// STTCallback receives streaming transcription events for one STT session.
// For a given handle, callbacks are delivered in emission order; a Final
// implies every earlier Partial for the same utterance has already been
// delivered.
type STTCallback interface {
	OnPartial(text string, confidence float64)
	OnFinal(text string, confidence float64)
	OnError(err error)
	OnClosed()
}

// STTStreamHandle is a live streaming transcription session returned by
// StreamingSTTProvider.Start.
type STTStreamHandle interface {
	// Send forwards a chunk of PCM audio to the provider.
	Send(ctx context.Context, chunk []byte) error
	// Stop ends the stream and returns the most recent final transcript the
	// provider produced (best effort), which may be one already delivered
	// through OnFinal.
	Stop(ctx context.Context) (finalText string, err error)
}

// StreamingSTTProvider is the only STT surface the orchestrator depends on;
// per-frame batch transcription is intentionally not part of this contract.
type StreamingSTTProvider interface {
	Name() string
	Start(ctx context.Context, sessionID string, format AudioFormat, lang Language, cb STTCallback) (STTStreamHandle, error)
}

// LLMResult is the terminal payload of a completed generation.
type LLMResult struct {
	Content      string
	Model        string
	TokensUsed   int
	ProcessingMS int64
}

// LLMStreamEvent is one item from a streaming generation: either a token
// fragment, a terminal result, or a terminal error. Exactly one of Token
// being non-empty, Result being non-nil, or Err being non-nil holds for any
// given event (Token may repeat; Result and Err are each sent at most once
// and end the stream).
type LLMStreamEvent struct {
	Token  string
	Result *LLMResult
	Err    error
}

// LLMProvider generates a streaming completion. The returned channel is
// closed by the provider once a Result or Err event has been sent. The
// provider must stop emitting tokens and release transport resources
// promptly once token.Done() fires.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, sessionID string, messages []Message, lang Language, token *CancellationToken) (<-chan LLMStreamEvent, error)
}

// PersistenceSink is the fire-and-forget collaborator that durably records
// a completed turn. Failures are logged by the orchestrator and never
// surfaced to the client.
type PersistenceSink interface {
	Persist(ctx context.Context, sessionID, userText, reply, model string, tokensUsed int, processingMS int64) error
}

// NoOpPersistenceSink discards every turn. Useful for tests and for
// deployments that have not wired a store yet.
type NoOpPersistenceSink struct{}

func (NoOpPersistenceSink) Persist(ctx context.Context, sessionID, userText, reply, model string, tokensUsed int, processingMS int64) error {
	return nil
}
