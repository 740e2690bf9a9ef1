package fleet

import (
	"fmt"

	"github.com/courierops/dispatchd/core/model"
)

// Commit is a reconciled set of route mutations produced from the snapshot at
// Rev. Routes hold the full desired stop queue per driver (committed prefix
// included); Released lists requests dropped from every route.
type Commit struct {
	Rev      uint64
	Routes   map[string]model.Route
	Released []string
}

// Diff summarizes what a commit actually changed.
type Diff struct {
	DriversChanged int
	Changed        []string // ids of drivers whose route was replaced
	StopsAssigned  int
	Released       int
	Stale          bool
	Dropped        int // stops discarded because the world moved during the solve
}

// Empty reports whether the commit was a no-op.
func (d Diff) Empty() bool {
	return d.DriversChanged == 0 && d.Released == 0
}

func (d *Diff) markChanged(driverID string) {
	for _, id := range d.Changed {
		if id == driverID {
			return
		}
	}
	d.DriversChanged++
	d.Changed = append(d.Changed, driverID)
}

// CommitRoutes applies reconciled routes inside one critical section. If the
// state advanced past c.Rev during the solve the commit merges
// conservatively: stops whose request was picked up, delivered or reassigned
// in the meantime are dropped rather than applied, and offline drivers are
// skipped. A request planned onto two drivers aborts the whole commit with
// ErrInconsistent.
func (s *State) CommitRoutes(c Commit) (Diff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	diff := Diff{Stale: s.rev != c.Rev}

	// Reject plans that double-own a request before touching anything.
	claimed := make(map[string]string)
	for driverID, route := range c.Routes {
		for _, id := range route.RequestIDs() {
			if prev, ok := claimed[id]; ok && prev != driverID {
				s.dumpLocked("commit places request on two drivers")
				return Diff{}, fmt.Errorf("%w: request %s planned on %s and %s", ErrInconsistent, id, prev, driverID)
			}
			claimed[id] = driverID
		}
	}

	for driverID, route := range c.Routes {
		d, ok := s.drivers[driverID]
		if !ok || d.Status == model.DriverOffline {
			diff.Dropped += len(route)
			continue
		}
		filtered := s.filterRouteLocked(driverID, route, &diff)
		if d.Route.Equal(filtered) {
			continue
		}
		diff.markChanged(driverID)
		diff.StopsAssigned += len(filtered)
		d.Route = filtered
		if len(d.Route) > 0 {
			d.Status = model.DriverEnRoute
		} else {
			d.Status = model.DriverIdle
		}
		for _, st := range filtered {
			if st.Action != model.ActionPickup {
				continue
			}
			r := s.requests[st.RequestID]
			if prev, had := s.owner[r.ID]; had && prev != driverID {
				s.stripStopsLocked(prev, r.ID, &diff)
			}
			if r.Status == model.RequestPending {
				r.Status = model.RequestAssigned
			}
			r.AssignedTo = driverID
			s.owner[r.ID] = driverID
		}
	}

	for _, id := range c.Released {
		r, ok := s.requests[id]
		if !ok || r.Status != model.RequestAssigned {
			continue // delivered, failed or picked up during the solve
		}
		r.Status = model.RequestPending
		r.AssignedTo = ""
		delete(s.owner, id)
		diff.Released++
	}

	if !diff.Empty() {
		s.rev++
	}
	return diff, nil
}

// stripStopsLocked removes a reassigned request's stops from its previous
// owner's route. The previous owner may have no entry in the commit at all,
// for example when it went offline during the solve; its retained route must
// still lose the moved request so no request sits on two routes.
func (s *State) stripStopsLocked(driverID, requestID string, diff *Diff) {
	d, ok := s.drivers[driverID]
	if !ok {
		return
	}
	var kept model.Route
	for _, st := range d.Route {
		if st.RequestID == requestID {
			continue
		}
		kept = append(kept, st)
	}
	if len(kept) == len(d.Route) {
		return
	}
	d.Route = kept
	if len(d.Route) == 0 && d.Status == model.DriverEnRoute {
		d.Status = model.DriverIdle
	}
	diff.markChanged(driverID)
}

// filterRouteLocked drops stops invalidated while the solver was running:
// requests that disappeared, got picked up elsewhere, or were reassigned. A
// dropped pickup removes the matching delivery too.
func (s *State) filterRouteLocked(driverID string, route model.Route, diff *Diff) model.Route {
	var out model.Route
	droppedPickup := make(map[string]bool)
	for _, st := range route {
		r, ok := s.requests[st.RequestID]
		if !ok {
			diff.Dropped++
			continue
		}
		switch st.Action {
		case model.ActionPickup:
			ownedElsewhere := false
			if owner, has := s.owner[st.RequestID]; has && owner != driverID && s.requests[st.RequestID].Status == model.RequestPickedUp {
				ownedElsewhere = true
			}
			if r.Status == model.RequestPickedUp || r.Status.Terminal() || ownedElsewhere {
				droppedPickup[st.RequestID] = true
				diff.Dropped++
				continue
			}
		case model.ActionDeliver:
			if droppedPickup[st.RequestID] {
				diff.Dropped++
				continue
			}
			if r.Status == model.RequestPickedUp && s.owner[st.RequestID] != driverID {
				diff.Dropped++
				continue
			}
		}
		out = append(out, st)
	}
	return out
}
