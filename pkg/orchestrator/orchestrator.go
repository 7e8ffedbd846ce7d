package orchestrator

import (
	"context"
	"sync"
	"time"
)

// Orchestrator wires the Session Registry (C4) to the streaming STT and LLM
// providers and dispatches frame/control traffic to the right per-session
// actor. It holds no per-session mutable state of its own beyond the
// session-id -> *Session directory used to route calls.
type Orchestrator struct {
	cfg         Config
	logger      Logger
	registry    *Registry
	stt         StreamingSTTProvider
	llm         LLMProvider
	persistence PersistenceSink
	telemetry   TelemetryRecorder

	sessMu   sync.RWMutex
	sessions map[string]*Session
}

// New builds an Orchestrator with default logging, no persistence, and no
// telemetry.
func New(stt StreamingSTTProvider, llm LLMProvider, cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		logger:      NoOpLogger{},
		registry:    NewRegistry(),
		stt:         stt,
		llm:         llm,
		persistence: NoOpPersistenceSink{},
		telemetry:   NoOpTelemetryRecorder{},
		sessions:    make(map[string]*Session),
	}
}

// WithLogger replaces the orchestrator's logger.
func (o *Orchestrator) WithLogger(logger Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// WithPersistence replaces the orchestrator's persistence sink.
func (o *Orchestrator) WithPersistence(sink PersistenceSink) *Orchestrator {
	if sink != nil {
		o.persistence = sink
	}
	return o
}

// WithTelemetry replaces the orchestrator's telemetry recorder.
func (o *Orchestrator) WithTelemetry(recorder TelemetryRecorder) *Orchestrator {
	if recorder != nil {
		o.telemetry = recorder
	}
	return o
}

// Registry exposes the underlying session registry, mainly for
// introspection and tests.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// NewSession starts (or idempotently rejoins) a session. A second call with
// the same id while the session is still live returns the existing Session
// rather than erroring, matching the registry's idempotent get-or-create
// contract.
func (o *Orchestrator) NewSession(ctx context.Context, id string, lang Language) (*Session, error) {
	if lang == "" {
		lang = o.cfg.Language
	}

	o.sessMu.RLock()
	if sess, ok := o.sessions[id]; ok {
		o.sessMu.RUnlock()
		return sess, nil
	}
	o.sessMu.RUnlock()

	sink := NewEventSink(id, 256)
	rec, created := o.registry.GetOrCreate(id, func() *OrchestrationRecord {
		return newOrchestrationRecord(id, lang, sink)
	})

	o.sessMu.Lock()
	if sess, ok := o.sessions[id]; ok {
		o.sessMu.Unlock()
		return sess, nil
	}
	sess := newSession(ctx, o, rec)
	o.sessions[id] = sess
	o.sessMu.Unlock()

	go sess.run()

	if created {
		_ = sess.emit(SinkSessionStarted, nil)
		o.telemetry.SessionStarted(id)
	}

	return sess, nil
}

// GetSession returns the live session for id, if any.
func (o *Orchestrator) GetSession(id string) (*Session, bool) {
	o.sessMu.RLock()
	defer o.sessMu.RUnlock()
	sess, ok := o.sessions[id]
	return sess, ok
}

// EndSession requests an orderly end for the given session. Returns
// ErrSessionNotFound if no such session is live.
func (o *Orchestrator) EndSession(id, reason string) error {
	o.sessMu.RLock()
	sess, ok := o.sessions[id]
	o.sessMu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.RequestEnd(reason)
	return nil
}

// PushFrame routes a frame to the named session's actor. Frames for an
// unknown or already-ended session are rejected rather than silently
// dropped.
func (o *Orchestrator) PushFrame(ctx context.Context, id string, frame *AudioFrame) error {
	o.sessMu.RLock()
	sess, ok := o.sessions[id]
	o.sessMu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return sess.PushFrame(ctx, frame)
}

func (o *Orchestrator) removeSession(id string) {
	o.sessMu.Lock()
	delete(o.sessions, id)
	o.sessMu.Unlock()
	o.registry.Remove(id)
}

func (o *Orchestrator) persistAsync(sessionID, userText string, result *LLMResult) {
	if o.persistence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.persistence.Persist(ctx, sessionID, userText, result.Content, result.Model, result.TokensUsed, result.ProcessingMS); err != nil {
			o.logger.Warn("persist turn failed", "session_id", sessionID, "error", err)
		}
	}()
}

// RunIdleSweep periodically ends sessions that have been idle beyond the
// configured timeout. Intended to run as a single long-lived goroutine for
// the lifetime of the orchestrator; returns when ctx is done.
func (o *Orchestrator) RunIdleSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range o.registry.IdleSessions(o.cfg.IdleTimeout) {
				o.sessMu.RLock()
				sess, ok := o.sessions[id]
				o.sessMu.RUnlock()
				if ok {
					sess.RequestEnd("idle timeout")
				}
			}
		}
	}
}
