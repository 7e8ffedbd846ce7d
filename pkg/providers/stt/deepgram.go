package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// DeepgramSTT opens one streaming websocket connection per session against
// Deepgram's real-time transcription endpoint.
type DeepgramSTT struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey: apiKey,
		url:    "wss://api.deepgram.com/v1/listen",
		dialer: websocket.DefaultDialer,
	}
}

func (s *DeepgramSTT) Name() string {
	return "deepgram-stt"
}

func (s *DeepgramSTT) Start(ctx context.Context, sessionID string, format orchestrator.AudioFormat, lang orchestrator.Language, cb orchestrator.STTCallback) (orchestrator.STTStreamHandle, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("deepgram: parse url: %w", err)
	}

	q := u.Query()
	q.Set("model", "nova-2")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", format.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", format.Channels))
	if lang != "" {
		q.Set("language", string(lang))
	}
	u.RawQuery = q.Encode()

	header := http.Header{"Authorization": []string{"Token " + s.apiKey}}
	conn, _, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	handle := &deepgramHandle{conn: conn, cb: cb, done: make(chan struct{})}
	go handle.readLoop()
	return handle, nil
}

type deepgramResult struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramHandle struct {
	conn *websocket.Conn
	cb   orchestrator.STTCallback

	writeMu sync.Mutex

	mu        sync.Mutex
	lastFinal string

	done     chan struct{}
	closeErr error
}

func (h *deepgramHandle) Send(ctx context.Context, chunk []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = h.conn.SetWriteDeadline(deadline)
	}
	return h.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (h *deepgramHandle) Stop(ctx context.Context) (string, error) {
	h.writeMu.Lock()
	_ = h.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	h.writeMu.Unlock()

	select {
	case <-h.done:
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}

	_ = h.conn.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastFinal, nil
}

func (h *deepgramHandle) readLoop() {
	defer close(h.done)
	defer h.cb.OnClosed()

	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.cb.OnError(fmt.Errorf("deepgram: read: %w", err))
			}
			return
		}

		var result deepgramResult
		if err := json.Unmarshal(msg, &result); err != nil {
			continue // control frames (Metadata, UtteranceEnd, ...) that aren't transcripts
		}
		if len(result.Channel.Alternatives) == 0 {
			continue
		}

		alt := result.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		if result.IsFinal {
			h.mu.Lock()
			h.lastFinal = alt.Transcript
			h.mu.Unlock()
			h.cb.OnFinal(alt.Transcript, alt.Confidence)
		} else {
			h.cb.OnPartial(alt.Transcript, alt.Confidence)
		}
	}
}
