// Package ws implements the /ws/stream boundary: a websocket connection
// carrying binary PCM audio frames in one direction and JSON control/event
// frames in both. This boundary sits outside the orchestrator's core scope;
// it exists to give the orchestrator a concrete external collaborator to
// drive.
package ws

import (
	"encoding/json"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// ControlType is the closed set of inbound JSON control messages a client
// may send.
type ControlType string

const (
	ControlSessionStart ControlType = "SESSION_START"
	ControlSessionEnd   ControlType = "SESSION_END"
	ControlHeartbeat    ControlType = "HEARTBEAT"
)

// ControlFrame is an inbound JSON text frame.
type ControlFrame struct {
	Type      ControlType     `json:"type"`
	SessionID string          `json:"sessionId"`
	Language  string          `json:"language,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// OutboundFrame is a JSON text frame delivered to the client, mapped
// from an orchestrator.SinkEvent via wireEventType below.
type OutboundFrame struct {
	Type        string      `json:"type"`
	SessionID   string      `json:"sessionId"`
	Payload     interface{} `json:"payload,omitempty"`
	TimestampMS int64       `json:"timestamp"`
}

// wireEventType maps the orchestrator's internal SinkEventType names to the
// uppercase wire constants clients are contracted to receive. The two sets
// diverge in naming, not just casing (ai.delta -> ASSISTANT_DELTA, ai.done
// -> ASSISTANT_DONE), so this mapping must stay explicit rather than a
// case transform of the internal name.
var wireEventType = map[orchestrator.SinkEventType]string{
	orchestrator.SinkSessionStarted:    "SESSION_STARTED",
	orchestrator.SinkSessionEnded:      "SESSION_ENDED",
	orchestrator.SinkTranscriptPartial: "TRANSCRIPT_PARTIAL",
	orchestrator.SinkTranscriptFinal:   "TRANSCRIPT_FINAL",
	orchestrator.SinkAIThinking:        "AI_THINKING",
	orchestrator.SinkAIDelta:           "ASSISTANT_DELTA",
	orchestrator.SinkAIDone:            "ASSISTANT_DONE",
	orchestrator.SinkAIInterrupted:     "AI_INTERRUPTED",
	orchestrator.SinkError:             "ERROR",
}

func outboundFromSinkEvent(ev orchestrator.SinkEvent) OutboundFrame {
	wireType, ok := wireEventType[ev.Type]
	if !ok {
		wireType = "ERROR"
	}
	return OutboundFrame{
		Type:        wireType,
		SessionID:   ev.SessionID,
		Payload:     ev.Payload,
		TimestampMS: ev.TimestampMS,
	}
}

// ErrorFrame is the outbound shape for boundary-level errors (e.g. frames
// pushed for an unknown session) that never reach the orchestrator's own
// sink.
type ErrorFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}
