// Package synth defines the speech backend contract shared by every engine.
package synth

import (
	"context"
	"errors"

	"github.com/dgnsrekt/duet/internal/voice"
)

// ErrUnknownVoice is returned by an engine handed a voice URI it does not
// own. Dispatch treats it like any other utterance failure.
var ErrUnknownVoice = errors.New("unknown voice")

// Utterance is one line of speech bound to a voice.
type Utterance struct {
	Text     string
	VoiceURI string
}

// Synthesizer produces audio for utterances. Speak blocks until the
// utterance has been rendered and played to completion; cancelling ctx
// stops synthesis and playback mid-utterance. Implementations also act as
// the voice source for catalog population.
type Synthesizer interface {
	voice.Source

	// Name identifies the engine in logs, config, and cache keys.
	Name() string

	Speak(ctx context.Context, utt Utterance) error
}

// Notifier is implemented by engines whose voice inventory can change
// after startup. The callback may fire on the engine's own goroutine, so
// receivers must serialize the resulting catalog rebuild themselves.
type Notifier interface {
	OnVoicesChanged(fn func())
}
