package orchestrator

import "time"

// Language is a BCP-47-ish tag passed through to the STT/LLM adapters.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

// Message is a single turn in the context handed to the LLM adapter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds every tunable named in the pause/VAD/registry contract.
// It is an immutable value passed at construction time; there is no
// module-level configuration state.
type Config struct {
	SampleRate int
	Channels   int

	// VAD tuning.
	VADBaseThreshold float64 // default energy floor below which audio is never speech
	VADAlpha         float64 // multiplier applied to the rolling noise baseline
	VADHistorySize   int     // bounded rolling window of past VAD results

	// Pause classification boundaries, in milliseconds. Silence durations
	// are banded using the *lower* boundary at exact ties (see VAD.Process):
	// [0, ShortPauseMS] -> SHORT_PAUSE
	// (ShortPauseMS, PauseStartedMS] -> PAUSE_STARTED
	// (PauseStartedMS, SignificantPauseMS] -> SIGNIFICANT_PAUSE (AI trigger)
	// (SignificantPauseMS, WaitingMS] -> WAITING
	// (WaitingMS, +Inf) -> TIMEOUT
	ShortPauseMS       int64
	PauseStartedMS     int64
	SignificantPauseMS int64
	WaitingMS          int64

	// MinWordsToInterrupt suppresses barge-ins shorter than this many words
	// of live (unconfirmed) transcript from cancelling an in-flight reply
	// while the assistant is actively responding. A value of 1 (the
	// default) cancels as soon as the STT stream has produced one live
	// word of the interruption; it does not fire on VAD speech energy
	// alone, since wordsSinceBargeIn counts transcribed words.
	MinWordsToInterrupt int

	// MaxContextMessages bounds the confirmed-segment/message history kept
	// per session.
	MaxContextMessages int

	// IdleTimeout ends a session that has received no frames for this long.
	IdleTimeout time.Duration

	Language Language
}

// DefaultConfig mirrors the pause boundaries and VAD tuning named in the
// orchestration contract.
func DefaultConfig() Config {
	return Config{
		SampleRate:          16000,
		Channels:            1,
		VADBaseThreshold:    0.01,
		VADAlpha:            2.0,
		VADHistorySize:      50,
		ShortPauseMS:        300,
		PauseStartedMS:      1000,
		SignificantPauseMS:  3000,
		WaitingMS:           10000,
		MinWordsToInterrupt: 1,
		MaxContextMessages:  20,
		IdleTimeout:         5 * time.Minute,
		Language:            LanguageEn,
	}
}
