package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// Server accepts websocket connections and bridges each one to a session on
// the orchestrator: binary frames become audio frames, JSON text frames
// drive session lifecycle, and the session's sink is streamed back out as
// JSON text frames.
type Server struct {
	orch       *orchestrator.Orchestrator
	logger     orchestrator.Logger
	sampleRate int
	channels   int
}

// NewServer builds a Server. sampleRate/channels describe the PCM format
// the boundary expects clients to send; the orchestrator's own Config value
// should normally supply these.
func NewServer(orch *orchestrator.Orchestrator, logger orchestrator.Logger, sampleRate, channels int) *Server {
	if logger == nil {
		logger = orchestrator.NoOpLogger{}
	}
	return &Server{orch: orch, logger: logger, sampleRate: sampleRate, channels: channels}
}

// Handler returns the http.Handler for the /ws/stream endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleStream)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	g, gctx := errgroup.WithContext(r.Context())

	var sessionID string

	g.Go(func() error {
		for {
			msgType, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}

			switch msgType {
			case websocket.MessageText:
				var ctrl ControlFrame
				if err := json.Unmarshal(data, &ctrl); err != nil {
					s.logger.Warn("malformed control frame", "error", err)
					continue
				}
				s.handleControl(gctx, g, conn, &sessionID, ctrl)

			case websocket.MessageBinary:
				if sessionID == "" {
					s.writeError(gctx, conn, "", "received audio before SESSION_START")
					continue
				}
				frame, err := orchestrator.NewAudioFrame(data, s.sampleRate, s.channels)
				if err != nil {
					s.writeError(gctx, conn, sessionID, "invalid audio frame: "+err.Error())
					continue
				}
				if err := s.orch.PushFrame(gctx, sessionID, frame); err != nil {
					s.writeError(gctx, conn, sessionID, err.Error())
				}
			}
		}
	})

	err = g.Wait()

	if sessionID != "" {
		_ = s.orch.EndSession(sessionID, "connection closed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		code := websocket.CloseStatus(err)
		if code == -1 {
			conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) handleControl(ctx context.Context, g *errgroup.Group, conn *websocket.Conn, sessionID *string, ctrl ControlFrame) {
	switch ctrl.Type {
	case ControlSessionStart:
		id := ctrl.SessionID
		if id == "" {
			id = uuid.NewString()
		}
		*sessionID = id

		sess, err := s.orch.NewSession(ctx, id, orchestrator.Language(ctrl.Language))
		if err != nil {
			s.writeError(ctx, conn, id, "failed to start session: "+err.Error())
			return
		}
		g.Go(func() error {
			return s.pumpEvents(ctx, conn, sess)
		})

	case ControlSessionEnd:
		if *sessionID != "" {
			_ = s.orch.EndSession(*sessionID, "client requested end")
		}

	case ControlHeartbeat:
		// Liveness is driven by audio frames; heartbeats need no action.

	default:
		s.writeError(ctx, conn, *sessionID, "unknown control type: "+string(ctrl.Type))
	}
}

func (s *Server) pumpEvents(ctx context.Context, conn *websocket.Conn, sess *orchestrator.Session) error {
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(outboundFromSinkEvent(ev))
			if err != nil {
				s.logger.Warn("failed to marshal outbound frame", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, sessionID, message string) {
	data, err := json.Marshal(ErrorFrame{Type: "error", SessionID: sessionID, Message: message})
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, data)
}
