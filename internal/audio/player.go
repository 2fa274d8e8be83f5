//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// The oto backend cannot be torn down and reopened, so the process holds a
// single context and the first Play fixes the output sample rate.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func initContext(sampleRate int) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   platformBufferSize(),
	}

	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		otoErr = fmt.Errorf("initializing audio device: %w", err)
		return
	}

	// The device is unusable until the backend signals readiness.
	<-ready

	otoCtx = ctx
	otoRate = sampleRate
	log.Debug("audio device ready", "rate", sampleRate, "buffer", opts.BufferSize)
}

func platformBufferSize() time.Duration {
	// CoreAudio underruns with small buffers. Elsewhere favor latency so
	// speech does not lag the line highlight.
	if runtime.GOOS == "darwin" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Player renders signed 16-bit little-endian mono PCM. Play blocks until the
// clip drains, which callers use as the utterance completion signal.
type Player struct {
	mu  sync.Mutex
	tap func(pcm []byte, sampleRate int)
}

func NewPlayer() *Player {
	return &Player{}
}

// SetTap registers a hook that observes every clip handed to Play. The
// loopback capture source uses it to mirror playback into the recorder.
func (p *Player) SetTap(fn func(pcm []byte, sampleRate int)) {
	p.mu.Lock()
	p.tap = fn
	p.mu.Unlock()
}

// Play writes the clip to the output device and waits for it to drain.
// Cancelling ctx stops playback mid-clip and returns ctx.Err().
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}

	otoOnce.Do(func() { initContext(sampleRate) })
	if otoErr != nil {
		return otoErr
	}
	if sampleRate != otoRate {
		return fmt.Errorf("audio device opened at %d Hz, clip is %d Hz", otoRate, sampleRate)
	}

	p.mu.Lock()
	tap := p.tap
	p.mu.Unlock()
	if tap != nil {
		tap(pcm, sampleRate)
	}

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.Pause()
			_ = player.Close()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return player.Close()
			}
		}
	}
}
