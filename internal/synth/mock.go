package synth

import (
	"context"
	"sync"

	"github.com/dgnsrekt/duet/internal/voice"
)

// Mock is a scriptable Synthesizer for tests. It records every Speak call
// and can be told to fail specific voices, fail listing, or hold utterances
// open until released.
type Mock struct {
	mu sync.Mutex

	agent     string
	voices    []voice.Voice
	voicesErr error

	speakErr    error
	speakErrURI map[string]error

	spoken    []Utterance
	listCalls int

	block   chan struct{}
	started chan Utterance

	voicesChanged func()
}

// NewMock returns a mock reporting the given agent string and voice list.
func NewMock(agent string, voices []voice.Voice) *Mock {
	return &Mock{agent: agent, voices: voices}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Agent() string {
	return m.agent
}

func (m *Mock) Voices(ctx context.Context) ([]voice.Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.voicesErr != nil {
		return nil, m.voicesErr
	}
	out := make([]voice.Voice, len(m.voices))
	copy(out, m.voices)
	return out, nil
}

// Speak records the utterance, then blocks if a gate is installed.
func (m *Mock) Speak(ctx context.Context, utt Utterance) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, utt)
	block := m.block
	started := m.started
	err := m.speakErr
	if e, ok := m.speakErrURI[utt.VoiceURI]; ok {
		err = e
	}
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- utt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// SetVoices replaces the voice list, simulating a host-side change.
func (m *Mock) SetVoices(voices []voice.Voice) {
	m.mu.Lock()
	m.voices = voices
	m.mu.Unlock()
}

// OnVoicesChanged registers the rebuild callback.
func (m *Mock) OnVoicesChanged(fn func()) {
	m.mu.Lock()
	m.voicesChanged = fn
	m.mu.Unlock()
}

// TriggerVoicesChanged fires the registered callback, simulating the
// engine announcing a new voice inventory.
func (m *Mock) TriggerVoicesChanged() {
	m.mu.Lock()
	fn := m.voicesChanged
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FailVoices makes Voices return err.
func (m *Mock) FailVoices(err error) {
	m.mu.Lock()
	m.voicesErr = err
	m.mu.Unlock()
}

// FailSpeak makes every Speak return err after recording the call.
func (m *Mock) FailSpeak(err error) {
	m.mu.Lock()
	m.speakErr = err
	m.mu.Unlock()
}

// FailVoiceURI makes Speak fail only for utterances bound to uri.
func (m *Mock) FailVoiceURI(uri string, err error) {
	m.mu.Lock()
	if m.speakErrURI == nil {
		m.speakErrURI = make(map[string]error)
	}
	m.speakErrURI[uri] = err
	m.mu.Unlock()
}

// Gate makes subsequent Speak calls announce themselves on started and then
// wait until release runs or their context is cancelled.
func (m *Mock) Gate() (started <-chan Utterance, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
	m.started = make(chan Utterance, 16)
	block := m.block
	var once sync.Once
	return m.started, func() {
		once.Do(func() { close(block) })
	}
}

// Spoken returns the utterances recorded so far, in call order.
func (m *Mock) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// SpeakCalls reports how many times Speak has been invoked.
func (m *Mock) SpeakCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spoken)
}

// ListCalls reports how many times Voices has been invoked.
func (m *Mock) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

var (
	_ Synthesizer = (*Mock)(nil)
	_ Notifier    = (*Mock)(nil)
)
