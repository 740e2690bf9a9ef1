package cost

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"context"

	"golang.org/x/time/rate"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/model"
)

// OSRM queries the OSRM HTTP table endpoint for pairwise durations and
// distances. Transient failures surface as cost.ErrUnavailable; the dispatch
// controller owns retry and backoff.
type OSRM struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOSRM creates a client for the given server. reqPerSec bounds the request
// rate against shared servers; zero disables limiting.
func NewOSRM(baseURL string, timeout time.Duration, reqPerSec float64) *OSRM {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var lim *rate.Limiter
	if reqPerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(reqPerSec), 1)
	}
	return &OSRM{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// Matrix implements cost.Provider.
func (o *OSRM) Matrix(ctx context.Context, locs []model.Location) (*corecost.Matrix, error) {
	if len(locs) == 0 {
		return corecost.NewMatrix(0), nil
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", corecost.ErrUnavailable, err)
		}
	}

	var coords strings.Builder
	for i, l := range locs {
		if i > 0 {
			coords.WriteByte(';')
		}
		fmt.Fprintf(&coords, "%f,%f", l.Lon, l.Lat)
	}
	url := fmt.Sprintf("%s/table/v1/driving/%s?annotations=duration,distance", o.baseURL, coords.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corecost.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: osrm status %d", corecost.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: osrm status %d: %s", corecost.ErrInvalidLocation, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode table response: %v", corecost.ErrUnavailable, err)
	}
	if tr.Code != "Ok" {
		return nil, fmt.Errorf("%w: osrm code %s: %s", corecost.ErrInvalidLocation, tr.Code, tr.Message)
	}
	n := len(locs)
	if len(tr.Durations) != n || len(tr.Distances) != n {
		return nil, fmt.Errorf("%w: table size %dx%d, want %d", corecost.ErrUnavailable, len(tr.Durations), len(tr.Distances), n)
	}

	m := corecost.NewMatrix(n)
	for i := 0; i < n; i++ {
		if len(tr.Durations[i]) != n || len(tr.Distances[i]) != n {
			return nil, fmt.Errorf("%w: ragged table row %d", corecost.ErrUnavailable, i)
		}
		for j := 0; j < n; j++ {
			dur, dist := tr.Durations[i][j], tr.Distances[i][j]
			if dur == nil || dist == nil {
				return nil, fmt.Errorf("%w: no route between %d and %d", corecost.ErrInvalidLocation, i, j)
			}
			m.Set(i, j, time.Duration(*dur*float64(time.Second)), *dist)
		}
	}
	return m, nil
}
