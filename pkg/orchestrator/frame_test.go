package orchestrator

import (
	"errors"
	"testing"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	return buf
}

func TestNewAudioFrameValidation(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{"nil payload", nil, 16000, 1, true},
		{"zero sample rate", pcm16(1, 2), 0, 1, true},
		{"negative channels", pcm16(1, 2), 16000, -1, true},
		{"odd length for mono", []byte{0x01}, 16000, 1, true},
		{"misaligned for stereo", pcm16(1, 2, 3), 16000, 2, true},
		{"valid mono", pcm16(1, 2, 3, 4), 16000, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAudioFrame(tt.payload, tt.sampleRate, tt.channels)
			if tt.wantErr && !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("expected ErrInvalidFrame, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAudioFrameSequenceIsMonotonic(t *testing.T) {
	a, err := NewAudioFrame(pcm16(0, 0), 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewAudioFrame(pcm16(0, 0), 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Seq() <= a.Seq() {
		t.Fatalf("expected b.Seq() > a.Seq(), got %d <= %d", b.Seq(), a.Seq())
	}
}

func TestAudioFramePayloadIsDefensiveCopy(t *testing.T) {
	original := pcm16(100, 200)
	frame, err := NewAudioFrame(original, 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	original[0] = 0xFF
	got := frame.Payload()
	got[0] = 0xEE

	again := frame.Payload()
	if again[0] == 0xEE || again[0] == 0xFF {
		t.Fatalf("mutating returned payload or the input slice affected the frame's internal copy")
	}
}

func TestAudioFrameRMSSilence(t *testing.T) {
	frame, err := NewAudioFrame(pcm16(0, 0, 0, 0), 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.RMS() != 0 {
		t.Errorf("expected RMS 0 for silence, got %v", frame.RMS())
	}
}

func TestAudioFrameRMSFullScale(t *testing.T) {
	frame, err := NewAudioFrame(pcm16(32767, -32768), 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.RMS() < 0.99 || frame.RMS() > 1.0 {
		t.Errorf("expected RMS near 1.0 for full-scale samples, got %v", frame.RMS())
	}
	if frame.Peak() < 0.99 {
		t.Errorf("expected peak near 1.0, got %v", frame.Peak())
	}
}

func TestAudioFrameDurationMS(t *testing.T) {
	// 160 samples at 16kHz mono = 10ms.
	samples := make([]int16, 160)
	frame, err := NewAudioFrame(pcm16(samples...), 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := frame.DurationMS(); got != 10 {
		t.Errorf("expected 10ms, got %v", got)
	}
}

func TestAudioFrameEqual(t *testing.T) {
	a, _ := NewAudioFrame(pcm16(1, 2), 16000, 1)
	b, _ := NewAudioFrame(pcm16(1, 2), 16000, 1)
	if a.Equal(b) {
		t.Fatal("frames with distinct sequence numbers should not be equal")
	}
	if !a.Equal(a) {
		t.Fatal("a frame should equal itself")
	}
	var nilFrame *AudioFrame
	if !nilFrame.Equal(nil) {
		t.Fatal("two nil frames should be equal")
	}
	if a.Equal(nilFrame) {
		t.Fatal("a non-nil frame should never equal nil")
	}
}
