package orchestrator

// VADEventType is the classified output of one VAD.Process call. It is a
// closed set; switches over it should be exhaustive.
type VADEventType string

const (
	VADSpeechStarted     VADEventType = "SPEECH_STARTED"
	VADSpeechContinuing  VADEventType = "SPEECH_CONTINUING"
	VADUserInterrupted   VADEventType = "USER_INTERRUPTED"
	VADShortPause        VADEventType = "SHORT_PAUSE"
	VADPauseStarted      VADEventType = "PAUSE_STARTED"
	VADSignificantPause  VADEventType = "SIGNIFICANT_PAUSE"
	VADWaiting           VADEventType = "WAITING"
	VADTimeout           VADEventType = "TIMEOUT"
	VADAISpeaking        VADEventType = "AI_SPEAKING"
	// VADListening is never returned by Process; it names the orchestrator's
	// steady idle state (no pause or speech yet observed this session) for
	// callers that want to mirror it alongside the VAD's own event set.
	VADListening VADEventType = "LISTENING"
)

// VADResult is the immutable classification of a single frame.
type VADResult struct {
	Speech            bool
	Energy            float64
	Confidence        float64
	Threshold         float64
	SilenceDurationMS int64
	SpeechDurationMS  int64
	TimestampMS       int64
	Event             VADEventType
}

// ShouldTriggerAI reports whether this result should cause the orchestrator
// to start a new AI generation (subject to the no-reply-in-flight guard the
// orchestrator itself enforces).
func (r *VADResult) ShouldTriggerAI() bool {
	return r.Event == VADSignificantPause
}

// ShouldInterruptAI reports whether this result represents user speech
// observed while the assistant was speaking, and so should cancel any
// in-flight reply.
func (r *VADResult) ShouldInterruptAI() bool {
	return r.Event == VADUserInterrupted
}

// VAD is a per-session voice-activity detector. It holds no I/O state: all
// mutation is confined to its own rolling fields and Process runs in
// O(|frame|) time.
type VAD struct {
	baseThreshold float64
	alpha         float64
	historySize   int

	shortPauseMS       int64
	pauseStartedMS     int64
	significantPauseMS int64
	waitingMS          int64

	baseline float64

	isSpeaking              bool
	currentSpeechDurationMS int64
	currentSilenceDurationMS int64
	lastFrameTS             int64

	aiSpeaking        bool
	aiResponseStartAt int64

	history []VADResult
}

// NewVAD constructs a VAD from the pause/threshold fields of Config.
func NewVAD(cfg Config) *VAD {
	historySize := cfg.VADHistorySize
	if historySize <= 0 {
		historySize = 50
	}
	alpha := cfg.VADAlpha
	if alpha <= 0 {
		alpha = 2.0
	}
	return &VAD{
		baseThreshold:      cfg.VADBaseThreshold,
		alpha:              alpha,
		historySize:        historySize,
		shortPauseMS:       cfg.ShortPauseMS,
		pauseStartedMS:     cfg.PauseStartedMS,
		significantPauseMS: cfg.SignificantPauseMS,
		waitingMS:          cfg.WaitingMS,
		history:            make([]VADResult, 0, historySize),
	}
}

// Process classifies one frame against the VAD's rolling state. It is the
// only mutator besides the two AI lifecycle hooks and Reset below.
func (v *VAD) Process(frame *AudioFrame) *VADResult {
	now := frame.CapturedAtMS()

	// Speech and silence durations accumulate each frame's PCM duration.
	delta := int64(frame.DurationMS())
	v.lastFrameTS = now

	energy := frame.RMS()
	threshold := v.baseThreshold
	if v.alpha*v.baseline > threshold {
		threshold = v.alpha * v.baseline
	}
	speech := energy > threshold

	confidence := 0.0
	if threshold > 0 {
		confidence = energy / threshold
		if confidence > 1 {
			confidence = 1
		}
	}

	result := VADResult{
		Speech:      speech,
		Energy:      energy,
		Confidence:  confidence,
		Threshold:   threshold,
		TimestampMS: now,
	}

	switch {
	case speech:
		v.currentSilenceDurationMS = 0
		v.currentSpeechDurationMS += delta

		switch {
		case v.aiSpeaking:
			result.Event = VADUserInterrupted
		case !v.isSpeaking:
			result.Event = VADSpeechStarted
		default:
			result.Event = VADSpeechContinuing
		}
		v.isSpeaking = true

	default: // silence
		v.isSpeaking = false
		v.currentSpeechDurationMS = 0
		v.currentSilenceDurationMS += delta

		// Baseline only adapts during classified silence so that speech
		// itself never raises the floor and suppresses later detection.
		v.baseline = 0.95*v.baseline + 0.05*energy

		switch {
		case v.aiSpeaking:
			result.Event = VADAISpeaking
		case v.currentSilenceDurationMS <= v.shortPauseMS:
			result.Event = VADShortPause
		case v.currentSilenceDurationMS <= v.pauseStartedMS:
			result.Event = VADPauseStarted
		case v.currentSilenceDurationMS <= v.significantPauseMS:
			result.Event = VADSignificantPause
		case v.currentSilenceDurationMS <= v.waitingMS:
			result.Event = VADWaiting
		default:
			result.Event = VADTimeout
		}
	}

	result.SilenceDurationMS = v.currentSilenceDurationMS
	result.SpeechDurationMS = v.currentSpeechDurationMS

	v.pushHistory(result)
	return &result
}

func (v *VAD) pushHistory(r VADResult) {
	v.history = append(v.history, r)
	if len(v.history) > v.historySize {
		v.history = v.history[len(v.history)-v.historySize:]
	}
}

// History returns a copy of the bounded rolling result window.
func (v *VAD) History() []VADResult {
	out := make([]VADResult, len(v.history))
	copy(out, v.history)
	return out
}

// OnAIResponseStarted marks the assistant as actively streaming a reply.
// While set, subsequent speech frames classify as USER_INTERRUPTED and
// silence frames classify as AI_SPEAKING. It is the orchestrator's only
// external mutator besides OnAIResponseFinished.
func (v *VAD) OnAIResponseStarted() {
	v.aiSpeaking = true
}

// OnAIResponseFinished clears the assistant-speaking flag.
func (v *VAD) OnAIResponseFinished() {
	v.aiSpeaking = false
}

// IsSpeaking reports the VAD's current user-speaking state.
func (v *VAD) IsSpeaking() bool {
	return v.isSpeaking
}

// Reset clears all rolling state. Used when a session's VAD needs to start
// fresh (e.g. after a long TIMEOUT).
func (v *VAD) Reset() {
	v.baseline = 0
	v.isSpeaking = false
	v.currentSpeechDurationMS = 0
	v.currentSilenceDurationMS = 0
	v.lastFrameTS = 0
	v.aiSpeaking = false
	v.history = v.history[:0]
}
