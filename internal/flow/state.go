package flow

// State is the position of a booking flow in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
	StateConfirming
	StateSubmitting
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateLoading:    "loading",
	StateReady:      "ready",
	StateError:      "error",
	StateConfirming: "confirming",
	StateSubmitting: "submitting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
