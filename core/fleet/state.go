// Package fleet holds the authoritative in-memory record of every driver and
// request. All mutation goes through one State guarded by a single mutex;
// planning works on immutable snapshots and commits back through a
// revision-checked critical section.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/model"
)

// ErrInconsistent marks a broken internal invariant (for example a request
// owned by two drivers). It aborts the offending operation, never the
// process.
var ErrInconsistent = errors.New("fleet: internal consistency violation")

// ErrUnknownDriver is returned for operations on an unregistered driver.
var ErrUnknownDriver = errors.New("fleet: unknown driver")

// ErrUnknownRequest is returned for operations on an unknown request.
var ErrUnknownRequest = errors.New("fleet: unknown request")

// Archiver receives requests leaving the active state (delivered or failed).
type Archiver interface {
	Archive(ctx context.Context, req model.Request) error
}

// State is the process-wide fleet state.
type State struct {
	mu       sync.Mutex
	drivers  map[string]*model.Driver
	requests map[string]*model.Request
	owner    map[string]string // request id -> driver id
	rev      uint64
	log      logger.Logger
	archiver Archiver
}

// New creates an empty fleet state. archiver may be nil.
func New(log logger.Logger, archiver Archiver) *State {
	return &State{
		drivers:  make(map[string]*model.Driver),
		requests: make(map[string]*model.Request),
		owner:    make(map[string]string),
		log:      log,
		archiver: archiver,
	}
}

// AddDriver registers a new driver.
func (s *State) AddDriver(d model.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drivers[d.ID]; ok {
		return fmt.Errorf("fleet: driver %s already registered", d.ID)
	}
	d.Route = d.Route.Clone()
	s.drivers[d.ID] = &d
	s.rev++
	return nil
}

// AddRequest registers a new pending request.
func (s *State) AddRequest(r model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("fleet: request %s already registered", r.ID)
	}
	r.Status = model.RequestPending
	r.AssignedTo = ""
	s.requests[r.ID] = &r
	s.rev++
	return nil
}

// SetDriverOffline toggles a driver's availability. Queued stops survive; an
// offline driver still owes them but receives no new assignments.
func (s *State) SetDriverOffline(id string, offline bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrUnknownDriver
	}
	if offline {
		d.Status = model.DriverOffline
	} else if len(d.Route) > 0 {
		d.Status = model.DriverEnRoute
	} else {
		d.Status = model.DriverIdle
	}
	s.rev++
	return nil
}

// Driver returns a copy of the driver.
func (s *State) Driver(id string) (model.Driver, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return model.Driver{}, false
	}
	out := *d
	out.Route = d.Route.Clone()
	return out, true
}

// Request returns a copy of an active request.
func (s *State) Request(id string) (model.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return model.Request{}, false
	}
	return *r, true
}

// Revision returns the current state revision. It advances on every
// state-changing mutation; position interpolation does not count.
func (s *State) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// ActiveRequests returns the number of requests not yet delivered or failed.
func (s *State) ActiveRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Snapshot is an immutable copy of the planning-relevant state.
type Snapshot struct {
	Rev      uint64
	Drivers  []model.Driver
	Requests []model.Request
}

// Snapshot deep-copies drivers and active requests under the lock. Solver and
// cost calls operate on the snapshot outside any lock. Entries are sorted by
// id so planning input order does not depend on map iteration.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Rev: s.rev}
	for _, d := range s.drivers {
		cp := *d
		cp.Route = d.Route.Clone()
		snap.Drivers = append(snap.Drivers, cp)
	}
	for _, r := range s.requests {
		snap.Requests = append(snap.Requests, *r)
	}
	sort.Slice(snap.Drivers, func(i, j int) bool { return snap.Drivers[i].ID < snap.Drivers[j].ID })
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })
	return snap
}

// NextStop returns the driver's immediate next stop, if any.
func (s *State) NextStop(driverID string) (model.Stop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok || len(d.Route) == 0 {
		return model.Stop{}, false
	}
	return d.Route[0], true
}

// UpdateDriverLocation records interpolated movement. It deliberately does
// not advance the revision: micro position updates must not invalidate
// in-flight planning snapshots.
func (s *State) UpdateDriverLocation(driverID string, loc model.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drivers[driverID]; ok {
		d.Location = loc
	}
}

// CompleteNextStop pops the driver's front stop and applies its effect:
// pickup raises the load and flips the request to picked up, delivery lowers
// the load, flips the request to delivered and hands it to the archiver.
func (s *State) CompleteNextStop(ctx context.Context, driverID string, at time.Time) (model.Stop, error) {
	s.mu.Lock()
	d, ok := s.drivers[driverID]
	if !ok {
		s.mu.Unlock()
		return model.Stop{}, ErrUnknownDriver
	}
	if len(d.Route) == 0 {
		s.mu.Unlock()
		return model.Stop{}, fmt.Errorf("fleet: driver %s has no queued stops", driverID)
	}
	stop := d.Route[0]
	d.Route = d.Route[1:]
	d.Location = stop.Location

	var archived *model.Request
	r, ok := s.requests[stop.RequestID]
	if !ok {
		s.mu.Unlock()
		return model.Stop{}, fmt.Errorf("%w: stop for unknown request %s", ErrInconsistent, stop.RequestID)
	}
	switch stop.Action {
	case model.ActionPickup:
		if r.Status != model.RequestAssigned || s.owner[r.ID] != driverID {
			s.dumpLocked("pickup on request not assigned to driver")
			s.mu.Unlock()
			return model.Stop{}, fmt.Errorf("%w: pickup of %s by %s in status %s", ErrInconsistent, r.ID, driverID, r.Status)
		}
		if d.Load+r.Size > d.Capacity {
			s.dumpLocked("pickup would exceed capacity")
			s.mu.Unlock()
			return model.Stop{}, fmt.Errorf("%w: pickup of %s overloads %s", ErrInconsistent, r.ID, driverID)
		}
		d.Load += r.Size
		r.Status = model.RequestPickedUp
	case model.ActionDeliver:
		if r.Status != model.RequestPickedUp || s.owner[r.ID] != driverID {
			s.dumpLocked("delivery on request not on board")
			s.mu.Unlock()
			return model.Stop{}, fmt.Errorf("%w: delivery of %s by %s in status %s", ErrInconsistent, r.ID, driverID, r.Status)
		}
		d.Load -= r.Size
		r.Status = model.RequestDelivered
		delete(s.owner, r.ID)
		delete(s.requests, r.ID)
		cp := *r
		archived = &cp
	}
	if len(d.Route) == 0 && d.Status != model.DriverOffline {
		d.Status = model.DriverIdle
	}
	s.rev++
	s.mu.Unlock()

	if archived != nil {
		s.archive(ctx, *archived)
	}
	return stop, nil
}

// MarkFailed removes the request from the active state with a reason code.
// Assigned requests are stripped from their owner's route first.
func (s *State) MarkFailed(ctx context.Context, requestID, reason string) error {
	s.mu.Lock()
	r, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownRequest
	}
	if owner, assigned := s.owner[requestID]; assigned {
		if d, ok := s.drivers[owner]; ok {
			var kept model.Route
			for _, st := range d.Route {
				if st.RequestID != requestID {
					kept = append(kept, st)
				}
			}
			d.Route = kept
			if r.Status == model.RequestPickedUp {
				d.Load -= r.Size
			}
			if len(d.Route) == 0 && d.Status != model.DriverOffline {
				d.Status = model.DriverIdle
			}
		}
		delete(s.owner, requestID)
	}
	r.Status = model.RequestFailed
	r.FailReason = reason
	r.AssignedTo = ""
	cp := *r
	delete(s.requests, requestID)
	s.rev++
	s.mu.Unlock()

	s.archive(ctx, cp)
	return nil
}

func (s *State) archive(ctx context.Context, r model.Request) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, r); err != nil && s.log != nil {
		s.log.Errorf("archive request %s: %v", r.ID, err)
	}
}

// dumpLocked logs a structured state dump for invariant failures. Caller
// holds the lock.
func (s *State) dumpLocked(msg string) {
	if s.log == nil {
		return
	}
	fields := map[string]any{"rev": s.rev}
	for id, d := range s.drivers {
		fields["driver_"+id] = fmt.Sprintf("status=%s load=%.1f stops=%d", d.Status, d.Load, len(d.Route))
	}
	for id, r := range s.requests {
		fields["request_"+id] = fmt.Sprintf("status=%s owner=%s", r.Status, s.owner[id])
	}
	s.log.Debugw("state dump: "+msg, fields)
}
