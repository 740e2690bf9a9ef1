package cost

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/courierops/dispatchd/core/model"
)

// Cached memoizes provider responses for the lifetime of a run. Providers are
// deterministic per run, so repeated planning cycles over an unchanged
// location set reuse the previous matrix.
type Cached struct {
	p    Provider
	mu   sync.Mutex
	memo map[string]*Matrix
}

// NewCached wraps p with a per-run memo.
func NewCached(p Provider) *Cached {
	return &Cached{p: p, memo: make(map[string]*Matrix)}
}

func cacheKey(locs []model.Location) string {
	var b strings.Builder
	for _, l := range locs {
		fmt.Fprintf(&b, "%.6f,%.6f;", l.Lat, l.Lon)
	}
	return b.String()
}

// Matrix returns the memoized matrix for the location list, querying the
// underlying provider on a miss. Errors are not cached.
func (c *Cached) Matrix(ctx context.Context, locs []model.Location) (*Matrix, error) {
	key := cacheKey(locs)
	c.mu.Lock()
	m, ok := c.memo[key]
	c.mu.Unlock()
	if ok {
		return m, nil
	}
	m, err := c.p.Matrix(ctx, locs)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.memo[key] = m
	c.mu.Unlock()
	return m, nil
}
