// Package session orchestrates dialog playback: it owns the voice catalog
// and speaker slots, serializes dispatches so at most one plan speaks at a
// time, walks the capture pipeline when a take is being recorded, and
// publishes every state change through a single status snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/capture"
	"github.com/dgnsrekt/duet/internal/script"
	"github.com/dgnsrekt/duet/internal/synth"
	"github.com/dgnsrekt/duet/internal/voice"
)

// Status is a point-in-time snapshot of the session. Line points at the
// 1-based plan line currently speaking, nil between dispatches; the pointee
// is never mutated, so holding a snapshot across updates is safe. Message
// carries the most recent error text and is empty while healthy.
type Status struct {
	State   State
	Line    *int
	Message string
}

// Config assembles a session. Engine is required; everything else has a
// usable default. A nil Capture disables Record.
type Config struct {
	Engine     synth.Synthesizer
	Capture    capture.Source
	Saver      Saver
	SampleRate int
	Output     string
}

// Session is safe for concurrent use. All catalog, selector and status
// mutation happens under one mutex, which is held only between utterances,
// never across a Speak call or a capture grant.
type Session struct {
	mu       sync.Mutex
	engine   synth.Synthesizer
	catalog  *voice.Catalog
	selector *voice.Selector
	machine  *Machine

	capture capture.Source
	saver   Saver
	rate    int
	output  string

	status   Status
	onStatus func(Status)

	// cancel and done belong to the dispatch in flight. A new dispatch
	// cancels its predecessor and waits on done before arming itself, so
	// two dispatches never mutate the session concurrently. startMu
	// serializes that handover when several dispatches arrive at once.
	startMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an idle session around the given engine.
func New(cfg Config) *Session {
	s := &Session{
		engine:  cfg.Engine,
		capture: cfg.Capture,
		saver:   cfg.Saver,
		rate:    cfg.SampleRate,
		output:  cfg.Output,
		machine: NewMachine(),
		status:  Status{State: StateIdle},
	}
	if s.rate <= 0 {
		s.rate = audio.DefaultRate
	}
	if s.output == "" {
		s.output = DefaultOutputName
	}
	if s.saver == nil {
		s.saver = FileSaver{}
	}
	s.catalog = &voice.Catalog{}
	s.selector = voice.NewSelector(s.catalog)
	return s
}

// OnStatus registers the status callback. It is invoked outside the
// session lock, once per state or status change, with a snapshot.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Init populates the voice catalog and assigns the default speaker voices.
// A failure is recorded on the status line and stays there until a rebuild
// succeeds; the voices-changed hook is installed either way so a late
// engine can still rescue the session.
func (s *Session) Init(ctx context.Context) error {
	var err error
	s.publish(func(st *Status) {
		err = s.catalog.Populate(ctx, s.engine)
		if err != nil {
			st.Message = err.Error()
			return
		}
		s.selector.AssignDefaults()
		st.Message = ""
	})

	if n, ok := s.engine.(synth.Notifier); ok {
		n.OnVoicesChanged(func() {
			if rerr := s.RefreshVoices(context.Background()); rerr != nil {
				log.Warn("voice catalog rebuild failed", "err", rerr)
			}
		})
	}
	return err
}

// RefreshVoices rebuilds the catalog from the engine and rebinds both
// speaker slots. On success any standing error is cleared and an error
// state returns to idle; on failure the error text replaces the status
// line and the slots keep their previous selections.
func (s *Session) RefreshVoices(ctx context.Context) error {
	var err error
	s.publish(func(st *Status) {
		err = s.catalog.Rebuild(ctx, s.engine)
		if err != nil {
			st.Message = err.Error()
			return
		}
		s.selector.Rebind()
		st.Message = ""
		if s.machine.Current() == StateError && s.machine.Transition(StateIdle) {
			st.State = StateIdle
		}
	})
	return err
}

// Speak parses text into a dialog plan and plays it through the speaker
// voices. It blocks until the plan is exhausted, the dispatch aborts, or a
// newer dispatch cancels this one.
func (s *Session) Speak(ctx context.Context, text string) error {
	return s.run(ctx, text, false)
}

// Record plays the plan like Speak while capturing the rendered audio, and
// saves the take when the dispatch winds down. The take is written even
// when the dispatch is cancelled or aborts partway, so whatever already
// played is kept.
func (s *Session) Record(ctx context.Context, text string) error {
	return s.run(ctx, text, true)
}

// Stop cancels the dispatch in flight, if any. It returns immediately; the
// status callback reports the return to idle once the dispatch unwinds.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetLanguage records a new language preference for a speaker slot and
// re-selects its voice. A preference no voice matches leaves the current
// selection in place.
func (s *Session) SetLanguage(id int, pref string) {
	s.mu.Lock()
	s.selector.SetLanguage(id, pref)
	s.mu.Unlock()
}

// Status returns the current snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Voices returns the catalog contents. Callers must not modify the slice.
func (s *Session) Voices() []voice.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Voices()
}

// Slot returns a copy of speaker slot 1 or 2.
func (s *Session) Slot(id int) (voice.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Slot(id)
}

// VoiceFor resolves a speaker slot's current voice.
func (s *Session) VoiceFor(id int) (voice.Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.VoiceFor(id)
}

// Output returns the filename takes are saved under.
func (s *Session) Output() string {
	return s.output
}

func (s *Session) run(ctx context.Context, text string, record bool) error {
	if err := s.precheck(text, record); err != nil {
		return err
	}

	cctx, cancel, done := s.begin(ctx)
	defer s.end(cancel, done)

	plan := script.Parse(text)
	if len(plan) == 0 {
		return nil
	}

	if record {
		return s.speakAndRecord(cctx, plan)
	}
	return s.speakOnly(cctx, plan)
}

// precheck rejects a dispatch before it can disturb one already in flight.
// Blank text and an empty catalog both read as missing input.
func (s *Session) precheck(text string, record bool) error {
	var err error
	s.publish(func(st *Status) {
		switch {
		case strings.TrimSpace(text) == "" || s.catalog.Len() == 0:
			err = ErrMissingInput
		case record && s.capture == nil:
			err = ErrNoCapture
		default:
			return
		}
		st.Message = err.Error()
	})
	return err
}

// begin cancels the dispatch in flight, waits for it to unwind completely,
// and arms the new one. Waiting outside the session lock is what lets the
// old dispatch take that lock to publish its final status; startMu keeps a
// third dispatch from slipping past while this one waits.
func (s *Session) begin(ctx context.Context) (context.Context, context.CancelFunc, chan struct{}) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	cctx, ccancel := context.WithCancel(ctx)
	cdone := make(chan struct{})
	s.mu.Lock()
	s.cancel, s.done = ccancel, cdone
	s.mu.Unlock()
	return cctx, ccancel, cdone
}

// end releases the dispatch's registration. Closing done is last: a
// successor blocked in begin resumes only after every status mutation of
// this dispatch has landed.
func (s *Session) end(cancel context.CancelFunc, done chan struct{}) {
	s.mu.Lock()
	if s.done == done {
		s.cancel, s.done = nil, nil
	}
	s.mu.Unlock()
	cancel()
	close(done)
}

// speakOnly walks Idle → Dispatching → Idle, detouring to Error only when
// a plan line has no resolvable voice.
func (s *Session) speakOnly(ctx context.Context, plan []script.Line) error {
	s.to(StateDispatching)
	err := s.dispatch(ctx, plan)
	switch {
	case errors.Is(err, ErrNoSuitableVoice):
		s.fail(err)
	case err != nil:
		s.idle(false)
	default:
		s.idle(true)
	}
	return err
}

// speakAndRecord walks the full capture pipeline. Once the grant has been
// given the recorder always stops and the take is always saved; only the
// grant itself can fail without producing a file.
func (s *Session) speakAndRecord(ctx context.Context, plan []script.Line) error {
	s.to(StateAwaitingGrant)

	rec := capture.NewRecorder(s.capture, s.rate)
	if err := rec.Start(ctx); err != nil {
		if !errors.Is(err, capture.ErrDenied) {
			err = fmt.Errorf("%w: %v", capture.ErrDenied, err)
		}
		s.fail(err)
		return err
	}
	s.to(StateCapturing)

	s.to(StateDispatching)
	derr := s.dispatch(ctx, plan)

	s.to(StateFinalizing)
	take, serr := rec.Stop()
	if serr == nil {
		_, serr = s.saver.Save(s.output, take)
	}
	if serr != nil {
		log.Error("saving take failed", "err", serr)
	}

	switch {
	case errors.Is(derr, ErrNoSuitableVoice):
		s.fail(derr)
		return derr
	case serr != nil:
		s.fail(serr)
		return serr
	case derr != nil:
		s.idle(false)
		return derr
	}
	s.idle(true)
	return nil
}

// dispatch speaks the plan in order. Each line resolves its speaker's
// voice at speak time, so a catalog rebuild mid-plan takes effect on the
// next line. Engine errors are utterance-level and logged, not fatal;
// cancellation and an unresolvable voice end the plan early.
func (s *Session) dispatch(ctx context.Context, plan []script.Line) error {
	for i, line := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		v, ok := s.selector.VoiceFor(line.Speaker)
		s.mu.Unlock()
		if !ok {
			return ErrNoSuitableVoice
		}

		n := i + 1
		s.publish(func(st *Status) { st.Line = &n })

		err := s.engine.Speak(ctx, synth.Utterance{Text: line.Text, VoiceURI: v.URI})
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			log.Warn("utterance failed", "line", n, "voice", v.URI, "err", err)
		}
	}
	return nil
}

// publish mutates the status under the lock and invokes the callback with
// the resulting snapshot after releasing it, so observers can call back
// into the session.
func (s *Session) publish(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	snap := s.status
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

// to advances the state machine, mirroring the move into the status.
func (s *Session) to(state State) {
	s.publish(func(st *Status) {
		if !s.machine.Transition(state) {
			log.Warn("invalid state transition",
				"from", s.machine.Current(), "to", state)
			return
		}
		st.State = state
	})
}

// fail parks the session in the error state with err on the status line
// and no line indicator.
func (s *Session) fail(err error) {
	s.publish(func(st *Status) {
		if s.machine.Transition(StateError) {
			st.State = StateError
		}
		st.Line = nil
		st.Message = err.Error()
	})
}

// idle returns the session to idle, clearing the line indicator. The
// status line is wiped only on a clean finish; a cancelled dispatch leaves
// whatever message was standing.
func (s *Session) idle(clearMsg bool) {
	s.publish(func(st *Status) {
		if s.machine.Transition(StateIdle) {
			st.State = StateIdle
		}
		st.Line = nil
		if clearMsg {
			st.Message = ""
		}
	})
}
