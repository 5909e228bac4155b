package dispatcher

// State is a step of the per-call state machine
type State int

const (
	StateIdle State = iota
	StateValidating
	StateProviderUninitialized
	StateCalling
	StateShaping
	StateDelivered
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                  "idle",
	StateValidating:            "validating",
	StateProviderUninitialized: "provider_uninitialized",
	StateCalling:               "calling",
	StateShaping:               "shaping",
	StateDelivered:             "delivered",
	StateFailed:                "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}
