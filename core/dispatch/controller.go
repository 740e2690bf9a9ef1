// Package dispatch implements the control loop: perceive world events,
// decide whether to replan, solve on a consistent snapshot, reconcile the
// candidate plan against the live fleet state and emit the changed routes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/model"
	coremqtt "github.com/courierops/dispatchd/core/mqtt"
	"github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/internal/eventbus"
)

// Controller drives replanning for one fleet. All methods take the current
// time explicitly so simulated and wall clocks behave identically.
type Controller struct {
	cfg      Config
	state    *fleet.State
	provider cost.Provider
	solver   solver.Solver
	feed     *events.Feed
	pub      coremqtt.Publisher
	bus      eventbus.EventBus
	log      logger.Logger

	mu       sync.Mutex
	lastPlan time.Time
	planned  bool
	dirty    bool
	attempts map[string]int
	warned   map[string]bool
}

// New creates a controller. The publisher and bus are optional.
func New(cfg Config, state *fleet.State, provider cost.Provider, sv solver.Solver, feed *events.Feed, pub coremqtt.Publisher, bus eventbus.EventBus, log logger.Logger) (*Controller, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	if state == nil || provider == nil || sv == nil {
		return nil, fmt.Errorf("dispatch: state, cost provider and solver are required")
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Controller{
		cfg:      cfg,
		state:    state,
		provider: provider,
		solver:   sv,
		feed:     feed,
		pub:      pub,
		bus:      bus,
		log:      log,
		attempts: make(map[string]int),
		warned:   make(map[string]bool),
	}, nil
}

// HandleEvent ingests one world event and replans if warranted. NewRequest
// registers the request before planning; DeadlineApproaching bypasses the
// debounce window.
func (c *Controller) HandleEvent(ctx context.Context, ev events.Event) error {
	force := false
	switch ev.Kind {
	case events.NewRequest:
		if ev.Request == nil {
			return fmt.Errorf("dispatch: new request event without payload")
		}
		if err := c.state.AddRequest(*ev.Request); err != nil {
			return err
		}
		c.log.Infof("request %s accepted (size %.1f, priority %d)", ev.Request.ID, ev.Request.Size, ev.Request.Priority)
	case events.DriverArrived:
		c.log.Debugf("driver %s arrived for request %s", ev.DriverID, ev.RequestID)
	case events.DeadlineApproaching:
		c.log.Warnf("deadline approaching for request %s", ev.RequestID)
		force = true
	}
	return c.plan(ctx, ev.Time, ev.Kind.String(), force)
}

// Tick runs periodic work: it scans for requests drifting toward their
// deadline, emits a DeadlineApproaching event for each once, and replans if
// events were debounced since the last cycle or the interval elapsed.
func (c *Controller) Tick(ctx context.Context, now time.Time) error {
	snap := c.state.Snapshot()
	c.pruneTracking(snap)
	urgent := false
	for _, r := range snap.Requests {
		if r.Status.Terminal() {
			continue
		}
		slack, ok := r.Slack(now)
		if !ok || slack > c.cfg.DeadlineSlack {
			continue
		}
		c.mu.Lock()
		seen := c.warned[r.ID]
		c.warned[r.ID] = true
		c.mu.Unlock()
		if seen {
			continue
		}
		urgent = true
		if c.feed != nil {
			c.feed.Push(events.Event{Kind: events.DeadlineApproaching, Time: now, RequestID: r.ID})
		}
	}
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()
	return c.plan(ctx, now, "timer", urgent || dirty)
}

// pruneTracking drops warned and attempt entries for requests that left the
// active state, for example delivered parcels. Both maps would otherwise grow
// for the lifetime of the process.
func (c *Controller) pruneTracking(snap fleet.Snapshot) {
	active := make(map[string]bool, len(snap.Requests))
	for _, r := range snap.Requests {
		active[r.ID] = true
	}
	c.mu.Lock()
	for id := range c.warned {
		if !active[id] {
			delete(c.warned, id)
		}
	}
	for id := range c.attempts {
		if !active[id] {
			delete(c.attempts, id)
		}
	}
	c.mu.Unlock()
}

// plan runs a cycle unless debounced. force bypasses the debounce window.
func (c *Controller) plan(ctx context.Context, now time.Time, trigger string, force bool) error {
	c.mu.Lock()
	if !force && c.planned && now.Sub(c.lastPlan) < c.cfg.MinPlanInterval {
		c.dirty = true
		c.mu.Unlock()
		return nil
	}
	c.lastPlan = now
	c.planned = true
	c.dirty = false
	c.mu.Unlock()
	return c.planCycle(ctx, now, trigger)
}

func (c *Controller) planCycle(ctx context.Context, now time.Time, trigger string) error {
	snap := c.state.Snapshot()
	rec := metrics.PlanCycle{Trigger: trigger, Time: now}

	var assignable, pinned []model.Request
	for _, r := range snap.Requests {
		switch r.Status {
		case model.RequestPending, model.RequestAssigned:
			assignable = append(assignable, r)
		case model.RequestPickedUp:
			pinned = append(pinned, r)
		}
	}
	if len(assignable)+len(pinned) == 0 {
		rec.Outcome = "noop"
		c.emit(rec)
		return nil
	}

	locs := make([]model.Location, 0, len(snap.Drivers)+2*len(assignable)+len(pinned))
	var vehicles []solver.Vehicle
	committed := make(map[string]string)
	for _, d := range snap.Drivers {
		if !d.Available() {
			continue
		}
		vehicles = append(vehicles, solver.Vehicle{
			ID:            d.ID,
			LocationIndex: len(locs),
			Capacity:      d.Capacity,
			Load:          d.Load,
		})
		locs = append(locs, d.Location)
		// The immediate next stop is committed motion: its request stays on
		// this driver so reconciliation never redirects a rolling vehicle.
		if len(d.Route) > 0 {
			committed[d.Route[0].RequestID] = d.ID
		}
	}
	if len(vehicles) == 0 {
		rec.Outcome = "no_drivers"
		c.log.Warnf("no available drivers for %d open requests", len(assignable)+len(pinned))
		c.emit(rec)
		return nil
	}

	var reqs []solver.Request
	for _, r := range assignable {
		pi := len(locs)
		locs = append(locs, r.Pickup)
		di := len(locs)
		locs = append(locs, r.Delivery)
		reqs = append(reqs, solver.Request{
			ID:            r.ID,
			PickupIndex:   pi,
			DeliveryIndex: di,
			Size:          r.Size,
			Priority:      r.Priority,
			Deadline:      r.Deadline,
			LockedTo:      committed[r.ID],
		})
	}
	for _, r := range pinned {
		di := len(locs)
		locs = append(locs, r.Delivery)
		reqs = append(reqs, solver.Request{
			ID:            r.ID,
			PickupIndex:   -1,
			DeliveryIndex: di,
			Size:          r.Size,
			Priority:      r.Priority,
			Deadline:      r.Deadline,
			LockedTo:      r.AssignedTo,
		})
	}
	rec.Requests = len(reqs)

	matrixStart := time.Now()
	m, err := c.matrixWithRetry(ctx, locs)
	rec.MatrixTime = time.Since(matrixStart)
	if err != nil {
		if errors.Is(err, cost.ErrInvalidLocation) {
			rec.Outcome = "invalid_location"
		} else {
			rec.Outcome = "cost_unavailable"
		}
		c.log.Errorf("cost matrix for %d locations: %v", len(locs), err)
		c.emit(rec)
		return err
	}

	problem := solver.Problem{
		Matrix:     m,
		Vehicles:   vehicles,
		Requests:   reqs,
		Now:        now,
		TimeBudget: c.cfg.SolverBudget,
	}
	solveCtx, cancel := context.WithTimeout(ctx, c.cfg.SolverBudget)
	solveStart := time.Now()
	plan, err := c.solver.Solve(solveCtx, problem)
	cancel()
	rec.SolverTime = time.Since(solveStart)
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrInfeasible):
			// Expected under load: keep current routes and count the
			// missed placement for every open request.
			rec.Outcome = "infeasible"
			c.recordUnplaced(ctx, now, requestIDs(assignable))
			c.emit(rec)
			return nil
		case errors.Is(err, solver.ErrTimeout):
			rec.Outcome = "timeout"
			c.log.Warnf("solver exceeded %s budget", c.cfg.SolverBudget)
			c.emit(rec)
			return nil
		default:
			rec.Outcome = "error"
			c.log.Errorf("solver: %v", err)
			c.emit(rec)
			return err
		}
	}
	if err := solver.Validate(problem, plan); err != nil {
		rec.Outcome = "invalid_plan"
		c.log.Errorf("rejecting plan: %v", err)
		c.emit(rec)
		return err
	}
	rec.Unassigned = len(plan.Unassigned)
	rec.Placed = len(reqs) - len(plan.Unassigned)
	rec.Cost = plan.Cost

	c.recordUnplaced(ctx, now, plan.Unassigned)
	c.mu.Lock()
	for _, r := range reqs {
		if plan.Assigned(r.ID) {
			delete(c.attempts, r.ID)
		}
	}
	c.mu.Unlock()

	commit := c.reconcile(snap, vehicles, locs, plan, now, m)
	diff, err := c.state.CommitRoutes(commit)
	if err != nil {
		rec.Outcome = "inconsistent"
		c.log.Errorf("commit rejected: %v", err)
		c.emit(rec)
		return err
	}
	rec.Changed = diff.DriversChanged
	rec.Released = diff.Released
	if diff.Empty() {
		rec.Outcome = "noop"
	} else {
		rec.Outcome = "planned"
	}
	if diff.Stale {
		c.log.Debugf("stale commit merged: %d stops dropped", diff.Dropped)
	}

	c.publishRoutes(diff.Changed)
	c.emit(rec)
	c.log.Infof("cycle %s/%s: %d requests, %d placed, %d unassigned, %d routes changed",
		trigger, rec.Outcome, rec.Requests, rec.Placed, rec.Unassigned, rec.Changed)
	return nil
}

// matrixWithRetry fetches the cost matrix, retrying transient provider
// failures with exponential backoff. Invalid locations are permanent and
// returned immediately.
func (c *Controller) matrixWithRetry(ctx context.Context, locs []model.Location) (*cost.Matrix, error) {
	backoff := c.cfg.CostBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.CostRetries; attempt++ {
		m, err := c.provider.Matrix(ctx, locs)
		if err == nil {
			return m, nil
		}
		lastErr = err
		if !errors.Is(err, cost.ErrUnavailable) {
			return nil, err
		}
		if attempt == c.cfg.CostRetries {
			break
		}
		c.log.Warnf("cost provider unavailable (attempt %d/%d): %v", attempt+1, c.cfg.CostRetries, err)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %v", cost.ErrUnavailable, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

// recordUnplaced counts a missed placement for each request and fails those
// that exhausted their attempts.
func (c *Controller) recordUnplaced(ctx context.Context, now time.Time, ids []string) {
	for _, id := range ids {
		// A picked-up request is physically on a vehicle; it can only be
		// delivered, never failed for lack of capacity.
		if r, ok := c.state.Request(id); !ok || r.Status == model.RequestPickedUp {
			continue
		}
		c.mu.Lock()
		c.attempts[id]++
		n := c.attempts[id]
		exhausted := n >= c.cfg.MaxPlacementAttempts
		if exhausted {
			delete(c.attempts, id)
		}
		c.mu.Unlock()
		if !exhausted {
			continue
		}
		c.log.Warnf("request %s unplaced after %d attempts, failing", id, n)
		if err := c.state.MarkFailed(ctx, id, "capacity_exceeded"); err != nil {
			c.log.Errorf("fail request %s: %v", id, err)
			continue
		}
		if c.bus != nil {
			c.bus.Publish(metrics.RequestOutcome{
				RequestID: id,
				Status:    "failed",
				Reason:    "capacity_exceeded",
				Time:      now,
			})
		}
	}
}

// reconcile turns the solver plan into a commit. Every vehicle in the
// problem gets a route entry so stale queues are cleared, a driver's
// committed immediate next stop stays first when the plan keeps the request
// on that driver, and legs and ETAs are derived from the matrix.
func (c *Controller) reconcile(snap fleet.Snapshot, vehicles []solver.Vehicle, locs []model.Location, plan model.Plan, now time.Time, m *cost.Matrix) fleet.Commit {
	current := make(map[string]model.Route, len(snap.Drivers))
	for _, d := range snap.Drivers {
		current[d.ID] = d.Route
	}

	routes := make(map[string]model.Route, len(vehicles))
	for _, v := range vehicles {
		stops := plan.Stops[v.ID]
		if cur := current[v.ID]; len(cur) > 0 {
			stops = keepCommittedFirst(cur[0], stops)
		}
		route := make(model.Route, 0, len(stops))
		prev := v.LocationIndex
		eta := now
		for _, ps := range stops {
			leg := model.Leg{
				Duration:  m.Duration(prev, ps.LocationIndex),
				DistanceM: m.DistanceM(prev, ps.LocationIndex),
			}
			eta = eta.Add(leg.Duration)
			route = append(route, model.Stop{
				RequestID: ps.RequestID,
				Action:    ps.Action,
				Location:  locs[ps.LocationIndex],
				Leg:       leg,
				ETA:       eta,
			})
			prev = ps.LocationIndex
		}
		routes[v.ID] = route
	}

	var released []string
	assignedNow := make(map[string]bool, len(snap.Requests))
	for _, r := range snap.Requests {
		if r.Status == model.RequestAssigned {
			assignedNow[r.ID] = true
		}
	}
	for _, id := range plan.Unassigned {
		if assignedNow[id] {
			released = append(released, id)
		}
	}
	return fleet.Commit{Rev: snap.Rev, Routes: routes, Released: released}
}

// keepCommittedFirst moves the driver's in-flight stop back to the front of
// the planned sequence when the plan still contains it. A driver already
// rolling toward a stop is never redirected mid-leg.
func keepCommittedFirst(first model.Stop, stops []model.PlannedStop) []model.PlannedStop {
	for i, ps := range stops {
		if ps.RequestID == first.RequestID && ps.Action == first.Action {
			if i == 0 {
				return stops
			}
			out := make([]model.PlannedStop, 0, len(stops))
			out = append(out, stops[i])
			out = append(out, stops[:i]...)
			out = append(out, stops[i+1:]...)
			return out
		}
	}
	return stops
}

func (c *Controller) publishRoutes(changed []string) {
	if c.pub == nil || len(changed) == 0 {
		return
	}
	rev := c.state.Revision()
	for _, id := range changed {
		d, ok := c.state.Driver(id)
		if !ok {
			continue
		}
		a := coremqtt.NewRouteAssignment(id, rev, d.Route, time.Now())
		if err := c.pub.PublishRoute(a); err != nil {
			c.log.Errorf("publish route for driver %s: %v", id, err)
		}
	}
}

func (c *Controller) emit(rec metrics.PlanCycle) {
	if c.bus != nil {
		c.bus.Publish(rec)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

func requestIDs(reqs []model.Request) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}
