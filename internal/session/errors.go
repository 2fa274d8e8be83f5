package session

import "errors"

// Dispatch and capture failures surfaced on the status line. Everything
// else an engine reports mid-dispatch is utterance-level and non-fatal.
var (
	// ErrMissingInput rejects a dispatch of blank text, or any dispatch
	// while the voice catalog is empty. It never cancels speech already
	// in flight.
	ErrMissingInput = errors.New("missing input")

	// ErrNoSuitableVoice aborts a dispatch whose plan reaches a line
	// bound to a speaker slot with no resolvable voice.
	ErrNoSuitableVoice = errors.New("no suitable voice")

	// ErrNoCapture is returned by Record when the session was built
	// without a capture source.
	ErrNoCapture = errors.New("capture unavailable")
)
