// Package capture records the system's audio output while duet speaks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/duet/internal/wav"
)

// ErrDenied reports that the capture grant was refused or aborted before
// any audio flowed.
var ErrDenied = errors.New("capture denied or cancelled")

// BlockSize is the number of samples a source delivers per block.
const BlockSize = 4096

// Source hands out capture streams. Open blocks until the grant resolves;
// a refusal surfaces as an error wrapping ErrDenied.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live capture. Blocks yields fixed-size sample blocks until
// the stream is closed, then the channel closes.
type Stream interface {
	Blocks() <-chan []float32
	Close() error
}

// Recorder accumulates capture blocks in memory and finalizes them into a
// WAV file image. It is not restartable; make a new one per take.
type Recorder struct {
	src  Source
	rate int

	mu      sync.Mutex
	stream  Stream
	blocks  [][]float32
	done    chan struct{}
	started bool
	stopped bool
}

// NewRecorder returns a recorder that will encode at sampleRate.
func NewRecorder(src Source, sampleRate int) *Recorder {
	return &Recorder{src: src, rate: sampleRate}
}

// Start requests the capture grant and, once granted, begins buffering
// blocks. It returns only after the grant resolves. Blocks are buffered
// strictly after the stream is connected; nothing earlier can appear in
// the recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("recorder already started")
	}
	r.started = true
	r.mu.Unlock()

	stream, err := r.src.Open(ctx)
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.stream = stream
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for block := range stream.Blocks() {
			// The tap goroutine is the only writer once started.
			r.blocks = append(r.blocks, block)
		}
	}()

	log.Debug("capture started", "rate", r.rate)
	return nil
}

// Stop halts the stream, waits for the tap to drain, and returns the
// buffered audio as a complete WAV file image. Stopping twice or before
// Start is an error.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.started || r.stream == nil {
		r.mu.Unlock()
		return nil, errors.New("recorder never started")
	}
	if r.stopped {
		r.mu.Unlock()
		return nil, errors.New("recorder already stopped")
	}
	r.stopped = true
	stream := r.stream
	done := r.done
	r.mu.Unlock()

	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("closing capture stream: %w", err)
	}
	<-done

	data := wav.Encode(r.blocks, r.rate)
	log.Debug("capture stopped", "blocks", len(r.blocks), "bytes", len(data))
	return data, nil
}

// Recording reports whether the recorder is between Start and Stop.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && !r.stopped
}
