package orchestrator

import (
	"sync"
	"time"
)

// OrchestrationState is the per-session state machine's closed set of
// states.
type OrchestrationState string

const (
	StateListening        OrchestrationState = "LISTENING"
	StateProcessingSpeech OrchestrationState = "PROCESSING_SPEECH"
	StateDetectingPause   OrchestrationState = "DETECTING_PAUSE"
	StateAIProcessing     OrchestrationState = "AI_PROCESSING"
	StateAIResponding     OrchestrationState = "AI_RESPONDING"
	StateUserInterrupted  OrchestrationState = "USER_INTERRUPTED"
)

// OrchestrationRecord is the per-session bookkeeping the Registry tracks.
// It is mutated only by the session's own worker goroutine; the mutex here
// exists solely so the Registry's idle sweep and external introspection
// (e.g. metrics) can take a consistent snapshot without racing that
// goroutine.
type OrchestrationRecord struct {
	mu sync.Mutex

	SessionID      string
	Language       Language
	CreatedAt      time.Time
	LastActivity   time.Time
	State          OrchestrationState
	InFlightToken  *CancellationToken
	STTHandle      STTStreamHandle
	ReplyStartedAt time.Time
	Sink           *EventSink
}

func newOrchestrationRecord(sessionID string, lang Language, sink *EventSink) *OrchestrationRecord {
	now := time.Now()
	return &OrchestrationRecord{
		SessionID:    sessionID,
		Language:     lang,
		CreatedAt:    now,
		LastActivity: now,
		State:        StateListening,
		Sink:         sink,
	}
}

// snapshot returns a lock-protected copy of the fields the idle sweeper and
// introspection callers need.
func (r *OrchestrationRecord) snapshot() (state OrchestrationState, lastActivity time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State, r.LastActivity
}

// touch updates LastActivity. Called by the session worker on every frame.
func (r *OrchestrationRecord) touch() {
	r.mu.Lock()
	r.LastActivity = time.Now()
	r.mu.Unlock()
}

// setState updates State under lock. The session worker is the only writer
// of the other fields, which it may mutate without the lock since it is the
// single writer for this record — but State is also read by the idle
// sweeper and metrics, so it goes through the lock.
func (r *OrchestrationRecord) setState(s OrchestrationState) {
	r.mu.Lock()
	r.State = s
	r.mu.Unlock()
}

// GetState returns the current state (safe for concurrent callers).
func (r *OrchestrationRecord) GetState() OrchestrationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// Registry is the atomic session id -> OrchestrationRecord map. Lookups and
// insertions are observable atomically; a session is never visible in a
// half-constructed state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*OrchestrationRecord
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*OrchestrationRecord)}
}

// GetOrCreate returns the existing record for id, or atomically creates one
// via factory if none exists. The returned bool reports whether this call
// created the record. Concurrent GetOrCreate calls for the same id are
// idempotent: exactly one factory invocation wins, everyone else observes
// the winner's fully-constructed record.
func (reg *Registry) GetOrCreate(id string, factory func() *OrchestrationRecord) (*OrchestrationRecord, bool) {
	reg.mu.RLock()
	if rec, ok := reg.sessions[id]; ok {
		reg.mu.RUnlock()
		return rec, false
	}
	reg.mu.RUnlock()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rec, ok := reg.sessions[id]; ok {
		return rec, false
	}
	rec := factory()
	reg.sessions[id] = rec
	return rec, true
}

// Get returns the record for id, if any.
func (reg *Registry) Get(id string) (*OrchestrationRecord, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rec, ok := reg.sessions[id]
	return rec, ok
}

// Remove deletes the record for id, if present.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.sessions, id)
}

// Len reports the number of live sessions.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}

// IdleSessions returns the ids of every session whose last activity is
// older than idleTimeout. Callers (the Orchestrator's sweep loop) run the
// end-session path for each before removing it from the registry.
func (reg *Registry) IdleSessions(idleTimeout time.Duration) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	now := time.Now()
	var idle []string
	for id, rec := range reg.sessions {
		_, lastActivity := rec.snapshot()
		if now.Sub(lastActivity) >= idleTimeout {
			idle = append(idle, id)
		}
	}
	return idle
}
