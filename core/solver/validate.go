package solver

import (
	"fmt"

	"github.com/courierops/dispatchd/core/model"
)

// Validate checks a plan against the problem's hard constraints: every stop
// references a known request, pickups precede deliveries, locked requests
// stay on their vehicle, no request appears on two vehicles, and running load
// never exceeds capacity at any point along a route.
func Validate(p Problem, plan model.Plan) error {
	reqs := make(map[string]Request, len(p.Requests))
	for _, r := range p.Requests {
		reqs[r.ID] = r
	}
	owner := make(map[string]string)
	for _, v := range p.Vehicles {
		load := v.Load
		picked := make(map[string]bool)
		for _, s := range plan.Stops[v.ID] {
			r, ok := reqs[s.RequestID]
			if !ok {
				return fmt.Errorf("vehicle %s: unknown request %s", v.ID, s.RequestID)
			}
			if prev, claimed := owner[s.RequestID]; claimed && prev != v.ID {
				return fmt.Errorf("request %s on both %s and %s", s.RequestID, prev, v.ID)
			}
			owner[s.RequestID] = v.ID
			if r.LockedTo != "" && r.LockedTo != v.ID {
				return fmt.Errorf("request %s locked to %s but planned on %s", r.ID, r.LockedTo, v.ID)
			}
			switch s.Action {
			case model.ActionPickup:
				if r.OnBoard() {
					return fmt.Errorf("request %s already on board, pickup planned", r.ID)
				}
				picked[s.RequestID] = true
				load += r.Size
				if load > v.Capacity {
					return fmt.Errorf("vehicle %s over capacity: %.1f > %.1f", v.ID, load, v.Capacity)
				}
			case model.ActionDeliver:
				if !picked[s.RequestID] && !r.OnBoard() {
					return fmt.Errorf("request %s delivered before pickup on %s", r.ID, v.ID)
				}
				load -= r.Size
			}
		}
	}
	return nil
}
