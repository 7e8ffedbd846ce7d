package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeSTTHandle records what was sent to it and lets tests assert Stop was
// called during session teardown.
type fakeSTTHandle struct {
	mu       sync.Mutex
	sent     int
	stopped  bool
	stopText string
}

func (h *fakeSTTHandle) Send(ctx context.Context, chunk []byte) error {
	h.mu.Lock()
	h.sent++
	h.mu.Unlock()
	return nil
}

func (h *fakeSTTHandle) Stop(ctx context.Context) (string, error) {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	return h.stopText, nil
}

func (h *fakeSTTHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// fakeSTTProvider hands the test direct access to the STTCallback the
// session registered, so tests can simulate partial/final transcripts on
// their own schedule rather than depending on a real provider's timing.
type fakeSTTProvider struct {
	mu         sync.Mutex
	cb         STTCallback
	handle     *fakeSTTHandle
	startErr   error
	startCalls int32
}

func newFakeSTTProvider() *fakeSTTProvider {
	return &fakeSTTProvider{handle: &fakeSTTHandle{}}
}

func (p *fakeSTTProvider) Name() string { return "fake-stt" }

func (p *fakeSTTProvider) Start(ctx context.Context, sessionID string, format AudioFormat, lang Language, cb STTCallback) (STTStreamHandle, error) {
	atomic.AddInt32(&p.startCalls, 1)
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	return p.handle, nil
}

func (p *fakeSTTProvider) callback() STTCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cb
}

func (p *fakeSTTProvider) sendPartial(text string, confidence float64) {
	if cb := p.callback(); cb != nil {
		cb.OnPartial(text, confidence)
	}
}

func (p *fakeSTTProvider) sendFinal(text string, confidence float64) {
	if cb := p.callback(); cb != nil {
		cb.OnFinal(text, confidence)
	}
}

// fakeLLMProvider streams a fixed token sequence, holding after the last
// token until either released or the cancellation token fires, so tests can
// deterministically exercise mid-generation interruption.
type fakeLLMProvider struct {
	mu            sync.Mutex
	tokens        []string
	holdBeforeEnd bool
	release       chan struct{}
	generateCalls int32
	genErr        error
	lastMessages  []Message
}

func newFakeLLMProvider(tokens ...string) *fakeLLMProvider {
	return &fakeLLMProvider{tokens: tokens, release: make(chan struct{})}
}

func (p *fakeLLMProvider) Name() string { return "fake-llm" }

func (p *fakeLLMProvider) Generate(ctx context.Context, sessionID string, messages []Message, lang Language, token *CancellationToken) (<-chan LLMStreamEvent, error) {
	atomic.AddInt32(&p.generateCalls, 1)
	p.mu.Lock()
	p.lastMessages = messages
	hold := p.holdBeforeEnd
	tokens := append([]string(nil), p.tokens...)
	genErr := p.genErr
	p.mu.Unlock()

	if genErr != nil {
		return nil, genErr
	}

	out := make(chan LLMStreamEvent, len(tokens)+1)
	go func() {
		defer close(out)
		for _, tok := range tokens {
			select {
			case out <- LLMStreamEvent{Token: tok}:
			case <-token.Done():
				return
			}
		}
		if hold {
			select {
			case <-p.release:
			case <-token.Done():
				return
			}
		}
		select {
		case out <- LLMStreamEvent{Result: &LLMResult{Content: strings.Join(tokens, ""), Model: "fake-model"}}:
		case <-token.Done():
		}
	}()
	return out, nil
}

// fakePersistenceSink records persisted turns for assertion.
type fakePersistenceSink struct {
	mu    sync.Mutex
	turns []string
}

func (p *fakePersistenceSink) Persist(ctx context.Context, sessionID, userText, reply, model string, tokensUsed int, processingMS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, reply)
	return nil
}

func (p *fakePersistenceSink) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.turns)
}

// fakeTelemetryRecorder records every call for assertion without needing a
// real metrics backend.
type fakeTelemetryRecorder struct {
	mu            sync.Mutex
	started       int
	ended         int
	interruptions int
	turnsComplete int
}

func (f *fakeTelemetryRecorder) SessionStarted(sessionID string) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeTelemetryRecorder) SessionEnded(sessionID string) {
	f.mu.Lock()
	f.ended++
	f.mu.Unlock()
}

func (f *fakeTelemetryRecorder) FrameProcessed(sessionID string, durationMS int64) {}

func (f *fakeTelemetryRecorder) Interrupted(sessionID string) {
	f.mu.Lock()
	f.interruptions++
	f.mu.Unlock()
}

func (f *fakeTelemetryRecorder) TurnCompleted(sessionID string, latency LatencyBreakdown) {
	f.mu.Lock()
	f.turnsComplete++
	f.mu.Unlock()
}

func (f *fakeTelemetryRecorder) snapshot() (started, ended, interruptions, turnsComplete int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.ended, f.interruptions, f.turnsComplete
}

// waitFor polls cond until it returns true or the timeout elapses, for
// assertions against the session's asynchronous worker loop.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

// drainEvents collects sink events into a slice until n have been seen or
// the timeout elapses.
func drainEvents(ch <-chan SinkEvent, n int, timeout time.Duration) []SinkEvent {
	var out []SinkEvent
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}
