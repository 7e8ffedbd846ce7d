package orchestrator

import "errors"

var (
	// ErrEmptyContext is returned when an AI trigger fires against a
	// transcript context that has no confirmed or live content.
	ErrEmptyContext = errors.New("transcript context has no content")

	// ErrTranscriptionFailed is returned when the STT adapter reports a
	// fatal (non-transient) failure.
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")

	// ErrLLMFailed is returned when the LLM adapter fails mid-generation.
	ErrLLMFailed = errors.New("language model generation failed")

	// ErrSessionNotFound is returned by registry and session operations
	// against an unknown or already-ended session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when an operation is attempted against
	// a session that has already run its end-of-life path.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidFrame is returned by NewAudioFrame when the payload or
	// format parameters violate the frame invariants.
	ErrInvalidFrame = errors.New("invalid audio frame")
)
