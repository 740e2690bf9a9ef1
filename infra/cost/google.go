package cost

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/model"
)

// Google answers matrix queries through the Google Distance Matrix API.
type Google struct {
	client *maps.Client
}

// NewGoogle creates a provider with the given API key.
func NewGoogle(apiKey string) (*Google, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google maps client: %w", err)
	}
	return &Google{client: c}, nil
}

// Matrix implements cost.Provider.
func (g *Google) Matrix(ctx context.Context, locs []model.Location) (*corecost.Matrix, error) {
	if len(locs) == 0 {
		return corecost.NewMatrix(0), nil
	}
	coords := make([]string, len(locs))
	for i, l := range locs {
		coords[i] = fmt.Sprintf("%f,%f", l.Lat, l.Lon)
	}
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      coords,
		Destinations: coords,
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corecost.ErrUnavailable, err)
	}
	n := len(locs)
	if len(resp.Rows) != n {
		return nil, fmt.Errorf("%w: %d rows, want %d", corecost.ErrUnavailable, len(resp.Rows), n)
	}
	m := corecost.NewMatrix(n)
	for i, row := range resp.Rows {
		if len(row.Elements) != n {
			return nil, fmt.Errorf("%w: ragged row %d", corecost.ErrUnavailable, i)
		}
		for j, el := range row.Elements {
			if i == j {
				continue
			}
			if el.Status != "OK" {
				return nil, fmt.Errorf("%w: element %d,%d status %s", corecost.ErrInvalidLocation, i, j, el.Status)
			}
			m.Set(i, j, el.Duration, float64(el.Distance.Meters))
		}
	}
	return m, nil
}
