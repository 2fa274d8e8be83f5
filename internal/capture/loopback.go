package capture

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/dgnsrekt/duet/internal/audio"
)

// LoopbackSource taps the playback path directly instead of going through
// the sound server. It records exactly the clips duet plays, which also
// makes recording work on machines with no capturable output device.
type LoopbackSource struct {
	player *audio.Player
	rate   int
}

// NewLoopbackSource returns a source that mirrors player output as float32
// blocks at sampleRate.
func NewLoopbackSource(player *audio.Player, sampleRate int) *LoopbackSource {
	return &LoopbackSource{player: player, rate: sampleRate}
}

// Open installs the playback tap. It cannot be refused.
func (l *LoopbackSource) Open(ctx context.Context) (Stream, error) {
	s := &loopbackStream{
		player: l.player,
		rate:   l.rate,
		blocks: make(chan []float32, 64),
	}
	l.player.SetTap(s.ingest)
	return s, nil
}

type loopbackStream struct {
	player *audio.Player
	rate   int
	blocks chan []float32

	mu      sync.Mutex
	pending []float32
	done    bool
}

func (s *loopbackStream) Blocks() <-chan []float32 {
	return s.blocks
}

// ingest runs on the playback goroutine for every clip handed to Play.
func (s *loopbackStream) ingest(pcm []byte, sampleRate int) {
	samples := pcm16ToFloat32(pcm)
	if sampleRate != s.rate {
		samples = resampleLinear(samples, sampleRate, s.rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.pending = append(s.pending, samples...)
	for len(s.pending) >= BlockSize {
		block := make([]float32, BlockSize)
		copy(block, s.pending[:BlockSize])
		s.pending = s.pending[BlockSize:]
		select {
		case s.blocks <- block:
		default:
			// Consumer fell behind; drop like a real capture overrun.
		}
	}
}

// Close removes the tap, flushes the zero-padded tail block, and closes the
// block channel.
func (s *loopbackStream) Close() error {
	s.player.SetTap(nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true

	if len(s.pending) > 0 {
		block := make([]float32, BlockSize)
		copy(block, s.pending)
		s.pending = nil
		select {
		case s.blocks <- block:
		default:
		}
	}
	close(s.blocks)
	return nil
}

func pcm16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		frac := float32(pos - float64(j))
		if j+1 < len(in) {
			out[i] = in[j]*(1-frac) + in[j+1]*frac
		} else {
			out[i] = in[len(in)-1]
		}
	}
	return out
}
