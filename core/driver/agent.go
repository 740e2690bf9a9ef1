// Package driver implements the per-vehicle agent: a state machine that
// executes its assigned route as simulated time passes. Agents never decide
// what to carry; they consume the stop queue the dispatch controller wrote
// into fleet state, in order.
package driver

import (
	"context"
	"time"

	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/internal/eventbus"
)

// Agent advances one driver along its route. All shared state lives in
// fleet.State; the agent only keeps progress bookkeeping for the leg it is
// currently driving, so a reconciliation replacing the route tail never
// disturbs it.
type Agent struct {
	id    string
	state *fleet.State
	feed  *events.Feed
	log   logger.Logger
	bus   eventbus.EventBus

	hasLeg   bool
	current  model.Stop
	legStart model.Location
	legTotal time.Duration
	legLeft  time.Duration
}

// NewAgent creates an agent for a registered driver.
func NewAgent(id string, state *fleet.State, feed *events.Feed, log logger.Logger) *Agent {
	return &Agent{id: id, state: state, feed: feed, log: log}
}

// WithBus attaches an event bus the agent publishes telemetry on.
func (a *Agent) WithBus(bus eventbus.EventBus) *Agent {
	a.bus = bus
	return a
}

// ID returns the driver id this agent executes for.
func (a *Agent) ID() string { return a.id }

// Advance moves the driver by elapsed simulated time. On arrival it completes
// the stop through fleet state (load and request status update atomically)
// and emits a DriverArrived event; leftover time rolls into the next leg.
func (a *Agent) Advance(ctx context.Context, now time.Time, elapsed time.Duration) {
	for elapsed > 0 {
		stop, ok := a.state.NextStop(a.id)
		if !ok {
			a.hasLeg = false
			return
		}
		if !a.hasLeg || !a.current.Same(stop) {
			// fresh leg: either the previous stop completed or the
			// controller assigned a new immediate stop to an idle driver
			d, exists := a.state.Driver(a.id)
			if !exists {
				return
			}
			a.current = stop
			a.legStart = d.Location
			a.legTotal = stop.Leg.Duration
			a.legLeft = stop.Leg.Duration
			a.hasLeg = true
		}
		if elapsed < a.legLeft {
			a.legLeft -= elapsed
			a.state.UpdateDriverLocation(a.id, a.position())
			return
		}
		elapsed -= a.legLeft
		done, err := a.state.CompleteNextStop(ctx, a.id, now)
		if err != nil {
			if a.log != nil {
				a.log.Errorf("driver %s complete stop: %v", a.id, err)
			}
			a.hasLeg = false
			return
		}
		if a.bus != nil {
			a.bus.Publish(metrics.StopCompletion{
				DriverID:  a.id,
				RequestID: done.RequestID,
				Action:    done.Action.String(),
				Time:      now,
			})
			if done.Action == model.ActionDeliver {
				a.bus.Publish(metrics.RequestOutcome{
					RequestID: done.RequestID,
					Status:    "delivered",
					DriverID:  a.id,
					Time:      now,
				})
			}
		}
		a.feed.Push(events.Event{
			Kind:      events.DriverArrived,
			Time:      now,
			DriverID:  a.id,
			RequestID: a.current.RequestID,
		})
		a.hasLeg = false
	}
}

// position interpolates linearly along the current leg. Exact progress only
// matters at stop completion, which uses leg durations from the cost
// provider.
func (a *Agent) position() model.Location {
	if a.legTotal <= 0 {
		return a.current.Location
	}
	f := 1 - a.legLeft.Seconds()/a.legTotal.Seconds()
	return model.Location{
		Lat: a.legStart.Lat + (a.current.Location.Lat-a.legStart.Lat)*f,
		Lon: a.legStart.Lon + (a.current.Location.Lon-a.legStart.Lon)*f,
	}
}
