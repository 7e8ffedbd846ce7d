package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

type fakeCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []string
	errs     []error
	closed   bool
	gotAny   chan struct{}
}

func newFakeCallback() *fakeCallback {
	return &fakeCallback{gotAny: make(chan struct{}, 16)}
}

func (f *fakeCallback) OnPartial(text string, confidence float64) {
	f.mu.Lock()
	f.partials = append(f.partials, text)
	f.mu.Unlock()
	f.gotAny <- struct{}{}
}

func (f *fakeCallback) OnFinal(text string, confidence float64) {
	f.mu.Lock()
	f.finals = append(f.finals, text)
	f.mu.Unlock()
	f.gotAny <- struct{}{}
}

func (f *fakeCallback) OnError(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func (f *fakeCallback) OnClosed() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeCallback) wait(n int, d time.Duration) {
	deadline := time.After(d)
	for i := 0; i < n; i++ {
		select {
		case <-f.gotAny:
		case <-deadline:
			return
		}
	}
}

func TestDeepgramSTTStreamsPartialsAndFinal(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// consume the audio chunk the handle sends
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":false,"channel":{"alternatives":[{"transcript":"hel","confidence":0.4}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":true,"channel":{"alternatives":[{"transcript":"hello","confidence":0.95}]}}`))

		// drain the CloseStream control message and exit cleanly
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	provider := NewDeepgramSTT("test-key")
	provider.url = wsURL

	cb := newFakeCallback()
	handle, err := provider.Start(context.Background(), "sess-1", orchestrator.AudioFormat{SampleRate: 16000, Channels: 1}, "", cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := handle.Send(context.Background(), []byte{0x00, 0x01}); err != nil {
		t.Fatalf("send: %v", err)
	}

	cb.wait(2, 2*time.Second)

	final, err := handle.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final != "hello" {
		t.Errorf("expected final 'hello', got %q", final)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.partials) != 1 || cb.partials[0] != "hel" {
		t.Errorf("unexpected partials: %v", cb.partials)
	}
	if len(cb.finals) != 1 || cb.finals[0] != "hello" {
		t.Errorf("unexpected finals: %v", cb.finals)
	}
}
