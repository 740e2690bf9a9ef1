package solver

import (
	"context"
	"math"
	"math/rand"
	"time"

	coresolver "github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/core/model"
)

// Anneal improves a greedy seed with remove-and-reinsert local search under a
// simulated-annealing acceptance criterion, within the problem's time budget.
// A fixed seed makes runs reproducible.
type Anneal struct {
	Seed       int64
	Iterations int
	Temp       float64
	Cooling    float64
}

// NewAnneal returns an annealing solver with default parameters.
func NewAnneal(seed int64) *Anneal {
	return &Anneal{Seed: seed, Iterations: 2000, Temp: 30, Cooling: 0.995}
}

// Solve implements solver.Solver.
func (a *Anneal) Solve(ctx context.Context, p coresolver.Problem) (model.Plan, error) {
	if err := ctx.Err(); err != nil {
		return model.Plan{}, coresolver.ErrTimeout
	}
	cand, unassigned := seed(p)
	placeable := 0
	movable := make([]int, 0, len(p.Requests))
	for ri, r := range p.Requests {
		if r.OnBoard() {
			continue
		}
		placeable++
		movable = append(movable, ri)
	}
	if placeable > 0 && placeable == len(unassigned) {
		return model.Plan{}, coresolver.ErrInfeasible
	}
	if len(movable) < 2 {
		return toPlan(p, cand, unassigned), nil
	}

	rng := rand.New(rand.NewSource(a.Seed))
	best := cand.clone()
	bestCost := planCost(p, best)
	curr := cand
	currCost := bestCost
	temp := a.Temp
	deadline := deadlineFor(ctx, p)

	for it := 0; it < a.Iterations; it++ {
		if it%64 == 0 && time.Now().After(deadline) {
			break
		}
		ri := movable[rng.Intn(len(movable))]
		next := removeRequest(curr, ri)
		vi, route, _, ok := bestInsertion(p, next, ri)
		if !ok {
			continue
		}
		next.routes[vi] = route
		nextCost := planCost(p, next)
		delta := nextCost - currCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr = next
			currCost = nextCost
			if currCost < bestCost {
				best = curr.clone()
				bestCost = currCost
			}
		}
		temp *= a.Cooling
	}
	return toPlan(p, best, unassigned), nil
}

func deadlineFor(ctx context.Context, p coresolver.Problem) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	budget := p.TimeBudget
	if budget <= 0 {
		budget = 200 * time.Millisecond
	}
	return time.Now().Add(budget)
}

// removeRequest drops both stops of a request from its vehicle, if placed.
func removeRequest(c candidate, ri int) candidate {
	out := c.clone()
	for vi, stops := range out.routes {
		kept := stops[:0:0]
		for _, s := range stops {
			if s.req != ri {
				kept = append(kept, s)
			}
		}
		out.routes[vi] = kept
	}
	return out
}
