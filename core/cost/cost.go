// Package cost defines the travel-cost boundary: a pluggable provider turning
// an ordered location list into a pairwise duration/distance matrix.
package cost

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/courierops/dispatchd/core/model"
)

// ErrUnavailable signals a transient provider failure (network, service).
// Callers retry with backoff; they never substitute fabricated distances.
var ErrUnavailable = errors.New("cost: provider unavailable")

// ErrInvalidLocation signals a location outside the provider's coverage.
var ErrInvalidLocation = errors.New("cost: location out of coverage")

// Matrix holds pairwise travel estimates for an ordered location list.
// Row i, column j is the cost of traveling from location i to location j.
type Matrix struct {
	durations *mat.Dense // seconds
	distances *mat.Dense // meters
}

// NewMatrix returns a zeroed n-by-n matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{
		durations: mat.NewDense(n, n, nil),
		distances: mat.NewDense(n, n, nil),
	}
}

// Len returns the matrix dimension.
func (m *Matrix) Len() int {
	r, _ := m.durations.Dims()
	return r
}

// Set stores the travel estimate from i to j.
func (m *Matrix) Set(i, j int, dur time.Duration, distM float64) {
	m.durations.Set(i, j, dur.Seconds())
	m.distances.Set(i, j, distM)
}

// Duration returns the travel time from i to j.
func (m *Matrix) Duration(i, j int) time.Duration {
	return time.Duration(m.durations.At(i, j) * float64(time.Second))
}

// DistanceM returns the travel distance from i to j in meters.
func (m *Matrix) DistanceM(i, j int) float64 {
	return m.distances.At(i, j)
}

// Provider answers pairwise travel-cost queries. Implementations must be
// deterministic for a fixed input within a single run so results may be
// cached, and must carry context deadlines through any remote calls.
type Provider interface {
	Matrix(ctx context.Context, locs []model.Location) (*Matrix, error)
}
