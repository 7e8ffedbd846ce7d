package orchestrator

// LatencyBreakdown records the wall-clock milestones of a single AI turn,
// adapted from the teacher's stage-timing approach minus the TTS stage this
// orchestrator's text-only reply pipeline has no use for.
type LatencyBreakdown struct {
	UserStoppedAtMS     int64
	TranscriptFinalAtMS int64
	AIThinkingAtMS      int64
	FirstDeltaAtMS      int64
	DoneAtMS            int64
}

// SpeechToTranscriptMS is the time from the user falling silent to the STT
// adapter confirming a final transcript. Zero if either milestone is unset.
func (l LatencyBreakdown) SpeechToTranscriptMS() int64 {
	if l.UserStoppedAtMS == 0 || l.TranscriptFinalAtMS == 0 {
		return 0
	}
	return l.TranscriptFinalAtMS - l.UserStoppedAtMS
}

// TranscriptToThinkingMS is the time spent assembling context and issuing
// the LLM request once the transcript was confirmed.
func (l LatencyBreakdown) TranscriptToThinkingMS() int64 {
	if l.TranscriptFinalAtMS == 0 || l.AIThinkingAtMS == 0 {
		return 0
	}
	return l.AIThinkingAtMS - l.TranscriptFinalAtMS
}

// TimeToFirstTokenMS is the time from issuing the LLM request to the first
// streamed token.
func (l LatencyBreakdown) TimeToFirstTokenMS() int64 {
	if l.AIThinkingAtMS == 0 || l.FirstDeltaAtMS == 0 {
		return 0
	}
	return l.FirstDeltaAtMS - l.AIThinkingAtMS
}

// TotalMS is the end-to-end turn latency, from the user falling silent to
// the completed reply.
func (l LatencyBreakdown) TotalMS() int64 {
	if l.UserStoppedAtMS == 0 || l.DoneAtMS == 0 {
		return 0
	}
	return l.DoneAtMS - l.UserStoppedAtMS
}
