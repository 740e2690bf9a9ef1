// Package cost provides the built-in travel-cost backends: an OSRM table
// client, a Google Distance Matrix client and a great-circle estimator for
// simulation runs.
package cost

import (
	"context"
	"time"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/model"
)

// Haversine estimates travel costs from great-circle distance at a fixed mean
// speed. It is the simulation-mode provider, selected explicitly by
// configuration; it is never used as a silent fallback for a failing remote
// provider.
type Haversine struct {
	SpeedMPS float64
}

// NewHaversine returns a provider assuming the given mean speed in m/s.
func NewHaversine(speedMPS float64) *Haversine {
	if speedMPS <= 0 {
		speedMPS = 11.11 // ~40 km/h
	}
	return &Haversine{SpeedMPS: speedMPS}
}

// Matrix implements cost.Provider.
func (h *Haversine) Matrix(_ context.Context, locs []model.Location) (*corecost.Matrix, error) {
	m := corecost.NewMatrix(len(locs))
	for i := range locs {
		for j := range locs {
			if i == j {
				continue
			}
			d := locs[i].HaversineM(locs[j])
			m.Set(i, j, time.Duration(d/h.SpeedMPS*float64(time.Second)), d)
		}
	}
	return m, nil
}
