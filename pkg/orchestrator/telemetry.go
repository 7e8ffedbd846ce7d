package orchestrator

// TelemetryRecorder is the narrow collaborator the orchestrator reports
// operational counters and latencies to. Concrete instrumentation (e.g. an
// OpenTelemetry-backed implementation) lives outside this package, matching
// the same injected-interface pattern as Logger and PersistenceSink.
type TelemetryRecorder interface {
	SessionStarted(sessionID string)
	SessionEnded(sessionID string)
	FrameProcessed(sessionID string, durationMS int64)
	Interrupted(sessionID string)
	TurnCompleted(sessionID string, latency LatencyBreakdown)
}

// NoOpTelemetryRecorder discards every observation. Default when no
// telemetry backend has been wired.
type NoOpTelemetryRecorder struct{}

func (NoOpTelemetryRecorder) SessionStarted(sessionID string)                       {}
func (NoOpTelemetryRecorder) SessionEnded(sessionID string)                         {}
func (NoOpTelemetryRecorder) FrameProcessed(sessionID string, durationMS int64)     {}
func (NoOpTelemetryRecorder) Interrupted(sessionID string)                          {}
func (NoOpTelemetryRecorder) TurnCompleted(sessionID string, latency LatencyBreakdown) {}
