package spotsync

import "sync"

// GateState is the refresh gate state.
type GateState int

const (
	// Idle means the markers match the viewport or a fetch is in flight.
	Idle GateState = iota
	// Dirty means the user moved the map and the "search this area"
	// affordance is shown.
	Dirty
)

func (s GateState) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "idle"
}

func (s GateState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RefreshGate decides between showing the manual refresh affordance and
// fetching automatically.
type RefreshGate struct {
	mu    sync.Mutex
	state GateState
}

// NewRefreshGate starts Idle since the initial load fetches on its own.
func NewRefreshGate() *RefreshGate {
	return &RefreshGate{state: Idle}
}

// State returns the current state.
func (g *RefreshGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// AffordanceVisible reports whether "search this area" should be shown.
func (g *RefreshGate) AffordanceVisible() bool {
	return g.State() == Dirty
}

// Settled handles a viewport settle. Only user-driven settles dirty the
// gate. It reports whether the state changed.
func (g *RefreshGate) Settled(cause MoveCause) bool {
	if cause != CauseUser {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Dirty {
		return false
	}
	g.state = Dirty
	return true
}

// Confirm handles a deliberate action (refresh, search, locate). It reports
// whether the state changed.
func (g *RefreshGate) Confirm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Idle {
		return false
	}
	g.state = Idle
	return true
}
