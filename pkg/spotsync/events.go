package spotsync

import (
	"sort"
	"sync"
)

// CenterReason says why the map center moved.
type CenterReason string

const (
	ReasonInitial CenterReason = "initial"
	ReasonSearch  CenterReason = "search"
	ReasonMove    CenterReason = "move"
	ReasonLocate  CenterReason = "locate"
)

// Event is anything the controller emits to subscribers.
type Event interface {
	EventType() string
}

// CenterChanged fires when the center moves, with the cause.
type CenterChanged struct {
	Center LatLng       `json:"center"`
	Reason CenterReason `json:"reason"`
}

// BBoxChanged fires after a fetch was issued for a new bbox.
type BBoxChanged struct {
	BBox string `json:"bbox"`
}

// SpotsUpdated fires after a committed fetch.
type SpotsUpdated struct {
	Spots []SpotRecord `json:"spots"`
}

// GateChanged fires when the refresh affordance appears or disappears.
type GateChanged struct {
	State             GateState `json:"state"`
	AffordanceVisible bool      `json:"affordance_visible"`
}

// StatusChanged carries the user-facing status line.
type StatusChanged struct {
	Status string `json:"status"`
}

// InfoWindowChanged fires when the info window opens or closes.
type InfoWindowChanged struct {
	SpotID SpotID `json:"spot_id,omitempty"`
	Open   bool   `json:"open"`
	Failed bool   `json:"failed,omitempty"`
}

func (CenterChanged) EventType() string     { return "center_changed" }
func (BBoxChanged) EventType() string       { return "bbox_changed" }
func (SpotsUpdated) EventType() string      { return "spots_updated" }
func (GateChanged) EventType() string       { return "gate_changed" }
func (StatusChanged) EventType() string     { return "status_changed" }
func (InfoWindowChanged) EventType() string { return "infowindow_changed" }

// Listener receives events in emission order.
type Listener func(Event)

// Emitter fans events out to subscribers. Delivery is serialized so every
// listener sees the same order.
type Emitter struct {
	mu        sync.Mutex
	deliverMu sync.Mutex
	next      int
	listeners map[int]Listener
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: map[int]Listener{}}
}

// Subscribe registers l and returns a function removing it.
func (e *Emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.listeners[id] = l
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Emit delivers events, in order, to every current subscriber.
func (e *Emitter) Emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()
	e.mu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		ls = append(ls, e.listeners[id])
	}
	e.mu.Unlock()
	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}
