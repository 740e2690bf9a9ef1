package sim

import (
	"context"
	"sync"
	"time"

	"github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/core/driver"
	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/model"
	coremqtt "github.com/courierops/dispatchd/core/mqtt"
	"github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/infra/archive"
	"github.com/courierops/dispatchd/internal/eventbus"
)

// Report summarizes a finished run.
type Report struct {
	Delivered int
	Failed    int
	Remaining int
	Elapsed   time.Duration
}

// Runner steps a scenario through the control loop. Each step pops due world
// events, lets the controller react, then advances every driver agent in
// parallel by the step duration.
type Runner struct {
	scen   *Scenario
	state  *fleet.State
	feed   *events.Feed
	ctrl   *dispatch.Controller
	agents []*driver.Agent
	arch   *archive.Memory
	clock  *Clock
	log    logger.Logger
}

// NewRunner builds a runner with its own fleet state and agents. The memory
// archive receives every terminal request and feeds the report.
func NewRunner(scen *Scenario, cfg dispatch.Config, deps Deps) (*Runner, error) {
	arch := archive.NewMemory()
	state := fleet.New(deps.Log, arch)
	feed := events.NewFeed()

	ctrl, err := dispatch.New(cfg, state, deps.Provider, deps.Solver, feed, deps.Publisher, deps.Bus, deps.Log)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		scen:  scen,
		state: state,
		feed:  feed,
		ctrl:  ctrl,
		arch:  arch,
		clock: NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)),
		log:   deps.Log,
	}
	for _, d := range scen.Drivers {
		if err := state.AddDriver(model.Driver{
			ID:       d.ID,
			Location: model.Location{Lat: d.Lat, Lon: d.Lon},
			Capacity: d.Capacity,
		}); err != nil {
			return nil, err
		}
		agent := driver.NewAgent(d.ID, state, feed, deps.Log)
		if deps.Bus != nil {
			agent.WithBus(deps.Bus)
		}
		r.agents = append(r.agents, agent)
	}
	start := r.clock.Now()
	for _, a := range scen.Arrivals {
		req := a.Request(start.Add(a.At))
		r.feed.Push(events.Event{Kind: events.NewRequest, Time: req.CreatedAt, Request: &req})
	}
	return r, nil
}

// Deps are the pluggable collaborators of a run.
type Deps struct {
	Provider  cost.Provider
	Solver    solver.Solver
	Publisher coremqtt.Publisher
	Bus       eventbus.EventBus
	Log       logger.Logger
}

// State exposes the fleet state, mainly for inspection after a run.
func (r *Runner) State() *fleet.State { return r.state }

// Terminal returns the archived terminal requests in completion order.
func (r *Runner) Terminal() []model.Request { return r.arch.All() }

// Run steps the scenario until every request reached a terminal state or the
// horizon expired.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.clock.Now()
	end := start.Add(r.scen.Horizon)
	lastArrival := start
	for _, a := range r.scen.Arrivals {
		if t := start.Add(a.At); t.After(lastArrival) {
			lastArrival = t
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.report(start), err
		}
		now := r.clock.Advance(r.scen.Step)
		if now.After(end) {
			break
		}

		for _, ev := range r.feed.PopUntil(now) {
			if err := r.ctrl.HandleEvent(ctx, ev); err != nil && r.log != nil {
				r.log.Errorf("handle %s event: %v", ev.Kind, err)
			}
		}
		if err := r.ctrl.Tick(ctx, now); err != nil && r.log != nil {
			r.log.Errorf("tick: %v", err)
		}

		var wg sync.WaitGroup
		for _, a := range r.agents {
			wg.Add(1)
			go func(a *driver.Agent) {
				defer wg.Done()
				a.Advance(ctx, now, r.scen.Step)
			}(a)
		}
		wg.Wait()

		if now.After(lastArrival) && r.state.ActiveRequests() == 0 && r.feed.Len() == 0 {
			break
		}
	}
	return r.report(start), nil
}

func (r *Runner) report(start time.Time) Report {
	rep := Report{
		Remaining: r.state.ActiveRequests(),
		Elapsed:   r.clock.Now().Sub(start),
	}
	for _, req := range r.arch.All() {
		switch req.Status {
		case model.RequestDelivered:
			rep.Delivered++
		case model.RequestFailed:
			rep.Failed++
		}
	}
	return rep
}
