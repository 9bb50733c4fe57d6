package conn

// EdgeState is the state of a one-shot connection edge.
type EdgeState int

const (
	// EdgeDown: the observed connection is down.
	EdgeDown EdgeState = iota
	// EdgeUnconsumed: the connection came up and nobody has been told yet.
	EdgeUnconsumed
	// EdgeConsumed: the rising edge has been reported.
	EdgeConsumed
)

func (s EdgeState) String() string {
	switch s {
	case EdgeUnconsumed:
		return "connected-unconsumed"
	case EdgeConsumed:
		return "connected-consumed"
	default:
		return "down"
	}
}

// Edge reports each disconnected-to-connected transition exactly once.
// The zero value is EdgeDown.
type Edge struct {
	state EdgeState
}

// Observe feeds the current connection state.
func (e *Edge) Observe(up bool) {
	if !up {
		e.state = EdgeDown
		return
	}
	if e.state == EdgeDown {
		e.state = EdgeUnconsumed
	}
}

// Consume returns true if a rising edge is pending and marks it reported.
func (e *Edge) Consume() bool {
	if e.state != EdgeUnconsumed {
		return false
	}
	e.state = EdgeConsumed
	return true
}

// State returns the current state.
func (e *Edge) State() EdgeState {
	return e.state
}
