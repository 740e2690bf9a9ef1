package model

import "time"

// StopAction is what the driver does on arrival at a stop.
type StopAction int

const (
	ActionPickup StopAction = iota
	ActionDeliver
)

func (a StopAction) String() string {
	if a == ActionPickup {
		return "pickup"
	}
	return "deliver"
}

// Leg is the travel estimate for reaching a stop from the previous position.
type Leg struct {
	Duration  time.Duration `json:"duration"`
	DistanceM float64       `json:"distance_m"`
}

// Stop is one element of a driver's route: an action on a request at a
// location, with the leg estimate and cumulative ETA computed at plan time.
type Stop struct {
	RequestID string     `json:"request_id"`
	Action    StopAction `json:"action"`
	Location  Location   `json:"location"`
	Leg       Leg        `json:"leg"`
	ETA       time.Time  `json:"eta"`
}

// Same reports whether two stops reference the same request action. Legs and
// ETAs are plan artifacts and do not affect identity.
func (s Stop) Same(o Stop) bool {
	return s.RequestID == o.RequestID && s.Action == o.Action
}

// Route is the authoritative, ordered queue of stops a driver is committed to.
// Completed stops are removed from the front.
type Route []Stop

// RequestIDs returns the distinct request ids referenced by the route in
// first-appearance order.
func (r Route) RequestIDs() []string {
	seen := make(map[string]bool, len(r))
	var ids []string
	for _, s := range r {
		if !seen[s.RequestID] {
			seen[s.RequestID] = true
			ids = append(ids, s.RequestID)
		}
	}
	return ids
}

// HasRequest reports whether the route references the request.
func (r Route) HasRequest(id string) bool {
	for _, s := range r {
		if s.RequestID == id {
			return true
		}
	}
	return false
}

// ValidOrdering reports whether every delivery in the route is preceded by its
// pickup, unless the pickup already happened (the request is on board and only
// the delivery remains).
func (r Route) ValidOrdering(onBoard map[string]bool) bool {
	picked := make(map[string]bool, len(r))
	for _, s := range r {
		switch s.Action {
		case ActionPickup:
			if picked[s.RequestID] {
				return false
			}
			picked[s.RequestID] = true
		case ActionDeliver:
			if !picked[s.RequestID] && !onBoard[s.RequestID] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	if r == nil {
		return nil
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// Equal reports whether two routes contain the same stop sequence, ignoring
// leg estimates and ETAs.
func (r Route) Equal(o Route) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Same(o[i]) {
			return false
		}
	}
	return true
}
