package orchestrator

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// frameSeq is the process-wide monotonic counter backing AudioFrame
// sequence numbers. It is the only package-level mutable state besides the
// Registry's map, per the "avoid module-level state" design note; both are
// required to provide atomic operations.
var frameSeq uint64

// AudioFrame is an immutable carrier of a PCM window. Once constructed it is
// safe to share across goroutines and components without copying.
type AudioFrame struct {
	payload      []byte
	sampleRate   int
	channels     int
	seq          uint64
	capturedAtMS int64
}

// NewAudioFrame validates and constructs an AudioFrame. The payload must be
// signed 16-bit little-endian PCM whose length is a multiple of
// channels*2. The sequence number is assigned from the process-wide
// monotonic counter, so ties across concurrently constructed frames are
// impossible.
func NewAudioFrame(payload []byte, sampleRate, channels int) (*AudioFrame, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidFrame)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidFrame, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidFrame, channels)
	}
	frameBytes := channels * 2
	if len(payload)%frameBytes != 0 {
		return nil, fmt.Errorf("%w: payload length %d is not a multiple of %d", ErrInvalidFrame, len(payload), frameBytes)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	return &AudioFrame{
		payload:      buf,
		sampleRate:   sampleRate,
		channels:     channels,
		seq:          atomic.AddUint64(&frameSeq, 1),
		capturedAtMS: time.Now().UnixMilli(),
	}, nil
}

// Payload returns a copy of the frame's PCM bytes. Copying preserves
// immutability even if a caller mutates the returned slice.
func (f *AudioFrame) Payload() []byte {
	out := make([]byte, len(f.payload))
	copy(out, f.payload)
	return out
}

func (f *AudioFrame) SampleRate() int     { return f.sampleRate }
func (f *AudioFrame) Channels() int       { return f.channels }
func (f *AudioFrame) Seq() uint64         { return f.seq }
func (f *AudioFrame) CapturedAtMS() int64 { return f.capturedAtMS }

// DurationMS returns the playback duration of the frame in milliseconds.
func (f *AudioFrame) DurationMS() float64 {
	samples := len(f.payload) / (f.channels * 2)
	return float64(samples) / float64(f.sampleRate) * 1000
}

// sampleCount returns the number of interleaved int16 samples in the frame.
func (f *AudioFrame) sampleCount() int {
	return len(f.payload) / 2
}

func (f *AudioFrame) sample(i int) int16 {
	return int16(f.payload[2*i]) | int16(f.payload[2*i+1])<<8
}

// RMS returns the root-mean-square energy of the frame normalized to [0,1].
func (f *AudioFrame) RMS() float64 {
	n := f.sampleCount()
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i < n; i++ {
		v := float64(f.sample(i)) / 32768.0
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(n))
}

// Peak returns max(|sample|/32768) across the frame.
func (f *AudioFrame) Peak() float64 {
	n := f.sampleCount()
	var peak float64
	for i := 0; i < n; i++ {
		v := math.Abs(float64(f.sample(i)) / 32768.0)
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Equal reports structural equality over all fields, including payload
// bytes.
func (f *AudioFrame) Equal(other *AudioFrame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.sampleRate != other.sampleRate || f.channels != other.channels ||
		f.seq != other.seq || f.capturedAtMS != other.capturedAtMS {
		return false
	}
	if len(f.payload) != len(other.payload) {
		return false
	}
	for i := range f.payload {
		if f.payload[i] != other.payload[i] {
			return false
		}
	}
	return true
}
