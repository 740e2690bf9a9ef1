package model

// PlannedStop is one solver-proposed stop. Locations are referenced by index
// into the cost matrix the solver was given; the dispatch controller resolves
// them back to concrete locations during reconciliation.
type PlannedStop struct {
	RequestID     string
	Action        StopAction
	LocationIndex int
}

// Plan is the solver's transient candidate output: a proposed ordered stop
// sequence per driver plus the requests it could not place. A plan is
// reconciled into route mutations and then discarded, never stored.
type Plan struct {
	Stops      map[string][]PlannedStop
	Cost       float64
	Unassigned []string
}

// Assigned reports whether the plan places the request on any driver.
func (p Plan) Assigned(requestID string) bool {
	for _, stops := range p.Stops {
		for _, s := range stops {
			if s.RequestID == requestID {
				return true
			}
		}
	}
	return false
}
