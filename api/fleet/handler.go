// Package fleet exposes read-only fleet state over HTTP for dashboards and
// debugging. Handlers are mounted on the metrics mux.
package fleet

import (
	"encoding/json"
	"net/http"
	"time"

	corefleet "github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/model"
)

type driverView struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Location model.Location `json:"location"`
	Capacity float64        `json:"capacity"`
	Load     float64        `json:"load"`
	Stops    []stopView     `json:"stops,omitempty"`
}

type stopView struct {
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	ETA       time.Time `json:"eta"`
}

type requestView struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Size       float64    `json:"size"`
	Priority   int        `json:"priority"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

type snapshotView struct {
	Revision uint64        `json:"revision"`
	Drivers  []driverView  `json:"drivers"`
	Requests []requestView `json:"requests"`
}

// NewSnapshotHandler returns a handler serving the current fleet snapshot via
// GET /api/fleet.
func NewSnapshotHandler(state *corefleet.State) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := state.Snapshot()
		view := snapshotView{Revision: snap.Rev}
		for _, d := range snap.Drivers {
			dv := driverView{
				ID:       d.ID,
				Status:   d.Status.String(),
				Location: d.Location,
				Capacity: d.Capacity,
				Load:     d.Load,
			}
			for _, s := range d.Route {
				dv.Stops = append(dv.Stops, stopView{RequestID: s.RequestID, Action: s.Action.String(), ETA: s.ETA})
			}
			view.Drivers = append(view.Drivers, dv)
		}
		for _, req := range snap.Requests {
			view.Requests = append(view.Requests, requestView{
				ID:         req.ID,
				Status:     req.Status.String(),
				AssignedTo: req.AssignedTo,
				Size:       req.Size,
				Priority:   req.Priority,
				Deadline:   req.Deadline,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
