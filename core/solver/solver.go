// Package solver defines the assignment boundary: a pluggable solver turning
// a cost matrix, vehicle descriptors and request descriptors into a candidate
// plan of ordered per-vehicle stops.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/model"
)

// ErrInfeasible is returned when no request can be placed on any vehicle
// while honoring capacity. It is an expected outcome, not a failure: the
// controller keeps its current routes and retries after the next state change.
var ErrInfeasible = errors.New("solver: no feasible assignment")

// ErrTimeout is returned when the time budget expired before any solution
// could be produced. Treated as recoverable by callers.
var ErrTimeout = errors.New("solver: time budget exceeded")

// Vehicle describes one dispatchable driver at solve time.
type Vehicle struct {
	ID            string
	LocationIndex int
	Capacity      float64
	Load          float64
}

// Request describes one request eligible for (re)assignment. Requests already
// on board have PickupIndex -1 and LockedTo set: only their delivery may be
// scheduled, and only on the locked vehicle.
type Request struct {
	ID            string
	PickupIndex   int
	DeliveryIndex int
	Size          float64
	Priority      int
	Deadline      *time.Time
	LockedTo      string
}

// OnBoard reports whether the request is already picked up.
func (r Request) OnBoard() bool { return r.PickupIndex < 0 }

// Problem is the immutable solver input built from a fleet snapshot.
type Problem struct {
	Matrix     *cost.Matrix
	Vehicles   []Vehicle
	Requests   []Request
	Now        time.Time
	TimeBudget time.Duration
}

// Solver computes a candidate plan. Implementations may be exact or
// heuristic; they must respect capacity at every point along a route and
// pickup-before-delivery ordering, and should minimize total travel time
// weighted with a priority/deadline tardiness penalty. The context carries
// the time budget as a deadline; implementations return their best feasible
// plan found so far when it expires.
type Solver interface {
	Solve(ctx context.Context, p Problem) (model.Plan, error)
}
