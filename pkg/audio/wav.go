// Package audio holds small encoding helpers for debugging captured audio
// outside of the live streaming path.
package audio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps raw 16-bit mono PCM in a minimal canonical WAV
// container. It exists for local debugging (e.g. dumping a session's
// captured microphone audio to disk) — nothing in the streaming path reads
// or writes WAV itself.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	blockAlign := numChannels * bitsPerSample / 8

	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                        // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                         // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))               //
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))                //
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))     // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))                //
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))             //

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
