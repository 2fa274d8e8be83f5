package session

// State is the phase of the session pipeline.
type State int

const (
	// StateIdle means nothing is speaking or recording.
	StateIdle State = iota
	// StateAwaitingGrant means the capture grant is pending.
	StateAwaitingGrant
	// StateCapturing means audio capture is live but dispatch has not begun.
	StateCapturing
	// StateDispatching means lines are being spoken (capture may be live).
	StateDispatching
	// StateFinalizing means capture is being stopped, encoded and saved.
	StateFinalizing
	// StateError means the last operation failed; a new operation resets it.
	StateError
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingGrant:
		return "awaiting grant"
	case StateCapturing:
		return "capturing"
	case StateDispatching:
		return "dispatching"
	case StateFinalizing:
		return "finalizing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Machine guards the session's phase transitions. A speak-only pass walks
// Idle → Dispatching → Idle; a recorded pass walks Idle → AwaitingGrant →
// Capturing → Dispatching → Finalizing → Idle. Error is terminal for the
// operation that entered it; only starting a new operation leaves it.
type Machine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
}

// NewMachine returns a machine in StateIdle.
func NewMachine() *Machine {
	return &Machine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:          {StateAwaitingGrant, StateDispatching},
			StateAwaitingGrant: {StateCapturing, StateError},
			StateCapturing:     {StateDispatching},
			StateDispatching:   {StateFinalizing, StateIdle, StateError},
			StateFinalizing:    {StateIdle, StateError},
			StateError:         {StateAwaitingGrant, StateDispatching, StateIdle},
		},
		onEnter: make(map[State]func()),
	}
}

// Transition moves to the given state if the edge exists and reports
// whether it did. The state's enter hook runs after the move.
func (m *Machine) Transition(to State) bool {
	valid := false
	for _, state := range m.transitions[m.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// OnEnter registers a hook that runs each time the machine enters state.
func (m *Machine) OnEnter(state State, fn func()) {
	m.onEnter[state] = fn
}
