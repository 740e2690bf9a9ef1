package solver

import (
	"context"
	"sort"

	coresolver "github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/core/model"
)

// Greedy is a deterministic cheapest-insertion solver. Requests are placed
// one at a time, most constrained first (on-board, then priority, then
// deadline), each at its cheapest feasible position across the fleet.
type Greedy struct{}

// NewGreedy returns a Greedy solver.
func NewGreedy() *Greedy { return &Greedy{} }

// Solve implements solver.Solver.
func (g *Greedy) Solve(ctx context.Context, p coresolver.Problem) (model.Plan, error) {
	if err := ctx.Err(); err != nil {
		return model.Plan{}, coresolver.ErrTimeout
	}
	cand, unassigned := seed(p)

	placeable := 0
	for _, r := range p.Requests {
		if !r.OnBoard() {
			placeable++
		}
	}
	if placeable > 0 && placeable == len(unassigned) {
		return model.Plan{}, coresolver.ErrInfeasible
	}
	return toPlan(p, cand, unassigned), nil
}

// seed builds an initial candidate by cheapest insertion and returns the ids
// of requests that fit nowhere.
func seed(p coresolver.Problem) (candidate, []string) {
	cand := newCandidate(len(p.Vehicles))
	order := make([]int, len(p.Requests))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := p.Requests[order[a]], p.Requests[order[b]]
		if ra.OnBoard() != rb.OnBoard() {
			return ra.OnBoard()
		}
		if ra.Priority != rb.Priority {
			return ra.Priority > rb.Priority
		}
		if (ra.Deadline == nil) != (rb.Deadline == nil) {
			return ra.Deadline != nil
		}
		if ra.Deadline != nil && !ra.Deadline.Equal(*rb.Deadline) {
			return ra.Deadline.Before(*rb.Deadline)
		}
		return ra.ID < rb.ID
	})

	var unassigned []string
	for _, ri := range order {
		vi, route, _, ok := bestInsertion(p, cand, ri)
		if !ok {
			unassigned = append(unassigned, p.Requests[ri].ID)
			continue
		}
		cand.routes[vi] = route
	}
	return cand, unassigned
}
