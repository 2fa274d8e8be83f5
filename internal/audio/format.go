// Package audio renders synthesized PCM through the default output device.
package audio

import "time"

// PCM format shared by every engine. Engines that can choose their output
// format request this one; engines with a fixed server-side format report
// their own rate and Play rejects it if the device was opened differently.
const (
	// DefaultRate is the sample rate engines are asked to produce.
	DefaultRate = 24000
	// Channels is the number of audio channels (1 = mono).
	Channels = 1
	// BitDepth is the bit depth per sample (16-bit).
	BitDepth = 16
	// BytesPerSample is the number of bytes per sample.
	BytesPerSample = BitDepth / 8
)

// Duration reports the play time of a signed 16-bit mono PCM clip.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
