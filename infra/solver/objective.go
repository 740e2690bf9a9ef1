// Package solver provides the built-in assignment backends: a deterministic
// cheapest-insertion heuristic and an annealing local search layered on top
// of it. Both honor running capacity, pickup-before-delivery ordering and
// pinned on-board requests.
package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	coresolver "github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/core/model"
)

// tardinessWeight converts seconds of deadline overrun into objective cost.
const tardinessWeight = 3.0

// stopRef references a request in the problem plus the action to perform.
type stopRef struct {
	req    int
	pickup bool
}

// candidate is a mutable working solution: one stop sequence per vehicle,
// indexed in problem vehicle order.
type candidate struct {
	routes [][]stopRef
}

func newCandidate(vehicles int) candidate {
	return candidate{routes: make([][]stopRef, vehicles)}
}

func (c candidate) clone() candidate {
	out := candidate{routes: make([][]stopRef, len(c.routes))}
	for i, r := range c.routes {
		out.routes[i] = append([]stopRef(nil), r...)
	}
	return out
}

func priorityFactor(priority int) float64 {
	if priority < 1 {
		priority = 1
	}
	return float64(priority)
}

// routeCost evaluates one vehicle's stop sequence: total travel seconds plus
// a weighted tardiness penalty for deliveries past their deadline. Reports
// feasible=false when the running load would exceed capacity.
func routeCost(p coresolver.Problem, v coresolver.Vehicle, stops []stopRef) (float64, bool) {
	load := v.Load
	t := 0.0
	cur := v.LocationIndex
	total := 0.0
	for _, s := range stops {
		r := p.Requests[s.req]
		idx := r.DeliveryIndex
		if s.pickup {
			idx = r.PickupIndex
		}
		drive := p.Matrix.Duration(cur, idx).Seconds()
		t += drive
		total += drive
		if s.pickup {
			load += r.Size
			if load > v.Capacity {
				return 0, false
			}
		} else {
			load -= r.Size
			if r.Deadline != nil {
				if late := t - r.Deadline.Sub(p.Now).Seconds(); late > 0 {
					total += tardinessWeight * priorityFactor(r.Priority) * late
				}
			}
		}
		cur = idx
	}
	return total, true
}

// planCost sums per-vehicle costs; infeasible candidates cost +Inf.
func planCost(p coresolver.Problem, c candidate) float64 {
	costs := make([]float64, len(c.routes))
	for vi, stops := range c.routes {
		cost, ok := routeCost(p, p.Vehicles[vi], stops)
		if !ok {
			return math.Inf(1)
		}
		costs[vi] = cost
	}
	return floats.Sum(costs)
}

// insertAt returns a copy of stops with s inserted at pos.
func insertAt(stops []stopRef, pos int, s stopRef) []stopRef {
	out := make([]stopRef, 0, len(stops)+1)
	out = append(out, stops[:pos]...)
	out = append(out, s)
	out = append(out, stops[pos:]...)
	return out
}

// bestInsertion finds the cheapest feasible insertion of request ri across
// vehicles: pickup and delivery positions with pickup first, or delivery only
// for on-board requests (restricted to the locked vehicle). A cost tie
// between vehicles goes to the one with fewer queued stops, so equal-cost
// work spreads across the fleet instead of piling onto the first vehicle.
func bestInsertion(p coresolver.Problem, c candidate, ri int) (vi int, route []stopRef, delta float64, ok bool) {
	r := p.Requests[ri]
	best := math.Inf(1)
	take := func(v int, cand []stopRef, d float64) {
		if ok {
			if d > best {
				return
			}
			if d == best && len(c.routes[v]) >= len(c.routes[vi]) {
				return
			}
		}
		best = d
		vi, route, ok = v, cand, true
	}
	for v := range p.Vehicles {
		if r.LockedTo != "" && p.Vehicles[v].ID != r.LockedTo {
			continue
		}
		base, feasible := routeCost(p, p.Vehicles[v], c.routes[v])
		if !feasible {
			continue
		}
		if r.OnBoard() {
			for pos := 0; pos <= len(c.routes[v]); pos++ {
				cand := insertAt(c.routes[v], pos, stopRef{req: ri})
				if cost, feas := routeCost(p, p.Vehicles[v], cand); feas {
					take(v, cand, cost-base)
				}
			}
			continue
		}
		for pi := 0; pi <= len(c.routes[v]); pi++ {
			withPickup := insertAt(c.routes[v], pi, stopRef{req: ri, pickup: true})
			for di := pi + 1; di <= len(withPickup); di++ {
				cand := insertAt(withPickup, di, stopRef{req: ri})
				if cost, feas := routeCost(p, p.Vehicles[v], cand); feas {
					take(v, cand, cost-base)
				}
			}
		}
	}
	return vi, route, best, ok
}

// toPlan converts a candidate into the solver's public plan shape.
func toPlan(p coresolver.Problem, c candidate, unassigned []string) model.Plan {
	plan := model.Plan{Stops: make(map[string][]model.PlannedStop, len(c.routes)), Unassigned: unassigned}
	for vi, stops := range c.routes {
		id := p.Vehicles[vi].ID
		for _, s := range stops {
			r := p.Requests[s.req]
			ps := model.PlannedStop{RequestID: r.ID, Action: model.ActionDeliver, LocationIndex: r.DeliveryIndex}
			if s.pickup {
				ps.Action = model.ActionPickup
				ps.LocationIndex = r.PickupIndex
			}
			plan.Stops[id] = append(plan.Stops[id], ps)
		}
	}
	plan.Cost = planCost(p, c)
	return plan
}
