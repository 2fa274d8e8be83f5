// Package wav frames captured float samples as an uncompressed RIFF/WAVE
// byte buffer: mono, 16-bit PCM, 44-byte header.
package wav

import (
	"bytes"
	"encoding/binary"
	"time"
)

// HeaderSize is the fixed size of the RIFF/WAVE header Encode emits.
const HeaderSize = 44

// Encode concatenates the sample blocks in push order, converts each float
// sample to little-endian PCM16, and prepends the container header. Every
// size field in the header matches the trailing data exactly; the result is
// always 44 + 2*n bytes for n samples.
//
// Samples are clamped to [-1, 1] and scaled by 32768 when negative and
// 32767 otherwise, so both range ends map onto the full int16 range.
func Encode(blocks [][]float32, sampleRate int) []byte {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	dataLen := 2 * n

	buf := &bytes.Buffer{}
	buf.Grow(HeaderSize + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16)) // subchunk1 size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // audio format (PCM)
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // channels
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, block := range blocks {
		for _, s := range block {
			_ = binary.Write(buf, binary.LittleEndian, pcm16(s))
		}
	}

	return buf.Bytes()
}

// pcm16 converts one float sample per the clamp-and-scale rule.
func pcm16(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Duration reports the playing time of n mono samples at the given rate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
