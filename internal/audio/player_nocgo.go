//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Player is the no-device build of the playback layer. Play paces itself on
// the wall clock instead of the sound card so dispatch timing and loopback
// recording behave the same as the cgo build.
type Player struct {
	mu  sync.Mutex
	tap func(pcm []byte, sampleRate int)
}

func NewPlayer() *Player {
	return &Player{}
}

// SetTap registers a hook that observes every clip handed to Play.
func (p *Player) SetTap(fn func(pcm []byte, sampleRate int)) {
	p.mu.Lock()
	p.tap = fn
	p.mu.Unlock()
}

// Play blocks for the clip's duration or until ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	tap := p.tap
	p.mu.Unlock()
	if tap != nil {
		tap(pcm, sampleRate)
	}

	d := Duration(pcm, sampleRate)
	log.Debug("simulating playback", "duration", d)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
