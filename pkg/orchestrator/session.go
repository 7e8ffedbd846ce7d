package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type sttEventKind int

const (
	sttEventPartial sttEventKind = iota
	sttEventFinal
	sttEventError
	sttEventClosed
)

type sttEvent struct {
	kind       sttEventKind
	text       string
	confidence float64
	err        error
	generation uint64
}

type llmEvent struct {
	generation uint64
	event      LLMStreamEvent
}

// sttCallback bridges a StreamingSTTProvider's own goroutine(s) back into
// the session's single serial worker loop via a channel, tagged with the
// STT generation it belongs to so a stream torn down and reopened after an
// error can't deliver stale callbacks into the new one.
type sttCallback struct {
	session    *Session
	generation uint64
}

func (c *sttCallback) OnPartial(text string, confidence float64) {
	c.session.pushSTTEvent(sttEvent{kind: sttEventPartial, text: text, confidence: confidence, generation: c.generation})
}

func (c *sttCallback) OnFinal(text string, confidence float64) {
	c.session.pushSTTEvent(sttEvent{kind: sttEventFinal, text: text, confidence: confidence, generation: c.generation})
}

func (c *sttCallback) OnError(err error) {
	c.session.pushSTTEvent(sttEvent{kind: sttEventError, err: err, generation: c.generation})
}

func (c *sttCallback) OnClosed() {
	c.session.pushSTTEvent(sttEvent{kind: sttEventClosed, generation: c.generation})
}

// Session is the per-session Conversation Orchestrator actor (C5). All
// mutation of its OrchestrationRecord, VAD, and TranscriptStore happens on
// the single goroutine started by run — the "single-writer-per-session"
// concurrency contract is satisfied by construction rather than by locking.
type Session struct {
	id     string
	orch   *Orchestrator
	record *OrchestrationRecord
	vad    *VAD
	store  *TranscriptStore
	sink   *EventSink
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc

	frames    chan *AudioFrame
	sttEvents chan sttEvent
	llmEvents chan llmEvent
	endCh     chan string

	generation uint64 // bumped on every AI trigger and every interrupt
	sttGen     uint64 // bumped on every (re)open of the STT stream

	lastVADEvent       VADEventType
	latency            LatencyBreakdown
	firstDeltaSeen     bool
	triggeredThisPause bool

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(ctx context.Context, orch *Orchestrator, rec *OrchestrationRecord) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	return &Session{
		id:        rec.SessionID,
		orch:      orch,
		record:    rec,
		vad:       NewVAD(orch.cfg),
		store:     NewTranscriptStore(orch.cfg.MaxContextMessages),
		sink:      rec.Sink,
		cfg:       orch.cfg,
		ctx:       sessCtx,
		cancel:    cancel,
		frames:    make(chan *AudioFrame, 64),
		sttEvents: make(chan sttEvent, 64),
		llmEvents: make(chan llmEvent, 64),
		endCh:     make(chan string, 1),
		done:      make(chan struct{}),
	}
}

// PushFrame enqueues a frame for processing, preserving arrival order.
// Blocks until the frame is accepted, the session ends, or ctx ends.
func (s *Session) PushFrame(ctx context.Context, frame *AudioFrame) error {
	select {
	case s.frames <- frame:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestEnd asks the session's worker to run the end-of-life path. Safe to
// call from any goroutine (registry idle sweep, boundary SESSION_END).
func (s *Session) RequestEnd(reason string) {
	select {
	case s.endCh <- reason:
	case <-s.ctx.Done():
	}
}

// Events exposes the session's ordered sink channel to the boundary.
func (s *Session) Events() <-chan SinkEvent {
	return s.sink.Events()
}

// Done is closed once the session's worker has fully exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the session's current orchestration state.
func (s *Session) State() OrchestrationState {
	return s.record.GetState()
}

func (s *Session) run() {
	defer close(s.done)
	defer s.finalize()

	for {
		select {
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			s.handleFrame(frame)
		case e := <-s.sttEvents:
			s.handleSTTEvent(e)
		case e := <-s.llmEvents:
			s.handleLLMEvent(e)
		case <-s.endCh:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// handleFrame implements the frame processing step (§4.5.1): VAD
// classification strictly precedes STT ingestion for the same frame, so an
// interruption observed on frame k cancels any reply before frame k can
// produce a delayed transcript that would otherwise re-trigger it.
func (s *Session) handleFrame(frame *AudioFrame) {
	start := time.Now()
	s.record.touch()

	res := s.vad.Process(frame)

	if res.ShouldInterruptAI() && s.wordsSinceBargeIn() >= s.cfg.MinWordsToInterrupt {
		s.interrupt()
		// Do not return: the frame must still reach the STT stream.
	}

	s.forwardToSTT(frame)

	if res.ShouldTriggerAI() && s.record.InFlightToken == nil && !s.triggeredThisPause {
		s.triggerAI()
		s.triggeredThisPause = true
	}

	s.applyTransition(res)

	s.orch.telemetry.FrameProcessed(s.id, time.Since(start).Milliseconds())
}

// wordsSinceBargeIn counts words in the live (unconfirmed) transcript,
// which accumulates the interrupting utterance as it is spoken. A barge-in
// shorter than MinWordsToInterrupt (e.g. a single "um") does not cancel an
// in-flight reply.
func (s *Session) wordsSinceBargeIn() int {
	return len(strings.Fields(s.store.GetContext().LiveText))
}

func (s *Session) applyTransition(res *VADResult) {
	wasSpeaking := s.lastVADEvent == VADSpeechStarted || s.lastVADEvent == VADSpeechContinuing
	if wasSpeaking && (res.Event == VADShortPause || res.Event == VADPauseStarted) {
		s.latency.UserStoppedAtMS = res.TimestampMS
	}
	s.lastVADEvent = res.Event

	switch res.Event {
	case VADSpeechStarted:
		s.triggeredThisPause = false
		s.record.setState(StateProcessingSpeech)
	case VADSpeechContinuing:
		s.record.setState(StateProcessingSpeech)
	case VADUserInterrupted:
		// Speech over an active reply ends the silence interval the latch
		// belongs to, just as SPEECH_STARTED does.
		s.triggeredThisPause = false
	case VADShortPause, VADPauseStarted:
		s.record.setState(StateDetectingPause)
	// SIGNIFICANT_PAUSE is handled by triggerAI (transitions to
	// AI_PROCESSING) or, when a reply is already in flight, left
	// unchanged. WAITING, TIMEOUT, AI_SPEAKING and USER_INTERRUPTED carry
	// no state transition of their own beyond what interrupt/triggerAI
	// already applied.
	default:
	}
}

func (s *Session) forwardToSTT(frame *AudioFrame) {
	if s.record.STTHandle == nil {
		s.openSTT()
	}
	if s.record.STTHandle == nil {
		return
	}
	if err := s.record.STTHandle.Send(s.ctx, frame.Payload()); err != nil {
		_ = s.emit(SinkError, fmt.Sprintf("stt send: %v", err))
		s.record.STTHandle = nil
	}
}

func (s *Session) openSTT() {
	if s.orch.stt == nil {
		return
	}
	s.sttGen++
	cb := &sttCallback{session: s, generation: s.sttGen}
	format := AudioFormat{SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
	handle, err := s.orch.stt.Start(s.ctx, s.id, format, s.record.Language, cb)
	if err != nil {
		_ = s.emit(SinkError, fmt.Sprintf("stt start: %v", err))
		return
	}
	s.record.STTHandle = handle
}

func (s *Session) pushSTTEvent(e sttEvent) {
	select {
	case s.sttEvents <- e:
	case <-s.ctx.Done():
	}
}

func (s *Session) handleSTTEvent(e sttEvent) {
	if e.generation != s.sttGen {
		return // stale callback from a stream generation we already tore down
	}

	switch e.kind {
	case sttEventPartial:
		s.store.UpdateLive(e.text, e.confidence, nowMS())
		_ = s.emit(SinkTranscriptPartial, TranscriptPayload{Text: e.text, Confidence: e.confidence, Final: false})
	case sttEventFinal:
		seg := s.store.ConfirmBuffer(e.text, e.confidence, nowMS())
		s.latency.TranscriptFinalAtMS = seg.EndMS
		_ = s.emit(SinkTranscriptFinal, TranscriptPayload{Text: seg.Text, Confidence: seg.Confidence, Final: true})
	case sttEventError:
		_ = s.emit(SinkError, fmt.Sprintf("%s: %v", ErrTranscriptionFailed, e.err))
		s.record.STTHandle = nil
	case sttEventClosed:
		s.record.STTHandle = nil
	}
}

// triggerAI implements the AI trigger sequence (§4.5.2).
func (s *Session) triggerAI() {
	snapshot := s.store.GetContext()
	if !snapshot.HasContent {
		s.orch.logger.Debug("ai trigger skipped", "session", s.id, "error", ErrEmptyContext)
		return
	}

	s.generation++
	gen := s.generation

	token := NewCancellationToken(s.ctx)
	s.record.InFlightToken = token
	s.record.ReplyStartedAt = time.Now()
	s.record.setState(StateAIProcessing)
	s.vad.OnAIResponseStarted()
	s.latency.AIThinkingAtMS = nowMS()
	s.firstDeltaSeen = false
	_ = s.emit(SinkAIThinking, nil)

	messages := s.buildMessages(snapshot)

	evCh, err := s.orch.llm.Generate(token.Context(), s.id, messages, s.record.Language, token)
	if err != nil {
		_ = s.emit(SinkError, fmt.Sprintf("llm: %v", err))
		s.record.InFlightToken = nil
		s.record.setState(StateListening)
		s.vad.OnAIResponseFinished()
		return
	}

	go s.pumpLLM(gen, evCh)
}

func (s *Session) pumpLLM(gen uint64, evCh <-chan LLMStreamEvent) {
	for ev := range evCh {
		select {
		case s.llmEvents <- llmEvent{generation: gen, event: ev}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) buildMessages(ctxSnapshot Context) []Message {
	return []Message{{Role: "user", Content: ctxSnapshot.AssembledText}}
}

func (s *Session) handleLLMEvent(e llmEvent) {
	if e.generation != s.generation {
		return // belongs to a generation that was since cancelled or superseded
	}
	if s.record.InFlightToken == nil {
		return // already resolved (race between cancellation and a queued event)
	}

	ev := e.event
	switch {
	case ev.Err != nil:
		_ = s.emit(SinkError, fmt.Sprintf("llm: %v", ev.Err))
		s.record.InFlightToken = nil
		s.record.setState(StateListening)
		s.vad.OnAIResponseFinished()

	case ev.Result != nil:
		s.latency.DoneAtMS = nowMS()
		_ = s.emit(SinkAIDone, ev.Result.Content)
		s.orch.persistAsync(s.id, s.store.GetContext().ConfirmedText, ev.Result)
		s.orch.telemetry.TurnCompleted(s.id, s.latency)
		s.record.InFlightToken = nil
		s.record.setState(StateListening)
		s.vad.OnAIResponseFinished()

	default:
		if s.record.GetState() == StateAIProcessing {
			s.record.setState(StateAIResponding)
		}
		if !s.firstDeltaSeen {
			s.firstDeltaSeen = true
			s.latency.FirstDeltaAtMS = nowMS()
		}
		_ = s.emit(SinkAIDelta, ev.Token)
	}
}

// interrupt cancels any in-flight reply and notifies the client. STT is
// deliberately left running: transcription continues across interruptions.
func (s *Session) interrupt() {
	token := s.record.InFlightToken
	if token == nil {
		return
	}
	token.Cancel()
	s.generation++ // invalidate any already-queued llm events for this generation
	s.record.InFlightToken = nil
	s.record.setState(StateUserInterrupted)
	s.vad.OnAIResponseFinished()
	s.record.setState(StateListening)
	_ = s.emit(SinkAIInterrupted, nil)
	s.orch.telemetry.Interrupted(s.id)
}

func (s *Session) emit(t SinkEventType, payload interface{}) error {
	return s.sink.Emit(s.ctx, t, payload)
}

// finalize runs the end-session path exactly once, regardless of whether it
// was triggered by RequestEnd, idle timeout, or context cancellation.
func (s *Session) finalize() {
	s.closeOnce.Do(func() {
		if token := s.record.InFlightToken; token != nil {
			token.Cancel()
			s.record.InFlightToken = nil
		}
		if handle := s.record.STTHandle; handle != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, _ = handle.Stop(stopCtx)
			cancel()
			s.record.STTHandle = nil
		}
		s.store.Clear()

		emitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.sink.Emit(emitCtx, SinkSessionEnded, nil)
		cancel()

		s.orch.telemetry.SessionEnded(s.id)
		s.orch.removeSession(s.id)
		s.sink.Close()
		s.cancel()
	})
}

func nowMS() int64 { return time.Now().UnixMilli() }
