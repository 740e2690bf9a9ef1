package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/model"
	coremqtt "github.com/courierops/dispatchd/core/mqtt"
	infracost "github.com/courierops/dispatchd/infra/cost"
	infrasolver "github.com/courierops/dispatchd/infra/solver"
)

// flakyProvider fails the first failures calls with ErrUnavailable, then
// delegates.
type flakyProvider struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    cost.Provider
}

func (f *flakyProvider) Matrix(ctx context.Context, locs []model.Location) (*cost.Matrix, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, cost.ErrUnavailable
	}
	return f.inner.Matrix(ctx, locs)
}

type routeRecorder struct {
	mu     sync.Mutex
	routes map[string]int
}

func newRouteRecorder() *routeRecorder {
	return &routeRecorder{routes: make(map[string]int)}
}

func (r *routeRecorder) PublishRoute(a coremqtt.RouteAssignment) error {
	r.mu.Lock()
	r.routes[a.DriverID]++
	r.mu.Unlock()
	return nil
}

func (r *routeRecorder) Disconnect() {}

func (r *routeRecorder) count(driverID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routes[driverID]
}

type memArchive struct {
	mu   sync.Mutex
	reqs []model.Request
}

func (m *memArchive) Archive(_ context.Context, r model.Request) error {
	m.mu.Lock()
	m.reqs = append(m.reqs, r)
	m.mu.Unlock()
	return nil
}

// Locations along the equator spaced by 0.01 degrees of longitude, roughly
// 1.1 km apart.
func loc(i int) model.Location {
	return model.Location{Lon: float64(i) * 0.01}
}

func request(id string, size float64, pickup, delivery int) model.Request {
	return model.Request{ID: id, Size: size, Pickup: loc(pickup), Delivery: loc(delivery)}
}

type env struct {
	state *fleet.State
	ctrl  *Controller
	pub   *routeRecorder
	arch  *memArchive
	now   time.Time
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	arch := &memArchive{}
	state := fleet.New(nil, arch)
	pub := newRouteRecorder()
	if cfg.MinPlanInterval == 0 {
		cfg.MinPlanInterval = time.Millisecond
	}
	ctrl, err := New(cfg, state, infracost.NewHaversine(10), infrasolver.NewGreedy(), events.NewFeed(), pub, nil, nil)
	require.NoError(t, err)
	return &env{
		state: state,
		ctrl:  ctrl,
		pub:   pub,
		arch:  arch,
		now:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (e *env) newRequest(t *testing.T, r model.Request, advance time.Duration) {
	t.Helper()
	e.now = e.now.Add(advance)
	require.NoError(t, e.ctrl.HandleEvent(context.Background(), events.Event{
		Kind:    events.NewRequest,
		Time:    e.now,
		Request: &r,
	}))
}

func TestAssignsCompatibleRequests(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 3), 0)
	e.newRequest(t, request("r2", 5, 2, 4), time.Second)

	d, ok := e.state.Driver("d1")
	require.True(t, ok)
	require.True(t, d.Route.ValidOrdering(nil))
	assert.ElementsMatch(t, []string{"r1", "r2"}, d.Route.RequestIDs())
	assert.Len(t, d.Route, 4)

	for _, id := range []string{"r1", "r2"} {
		r, ok := e.state.Request(id)
		require.True(t, ok)
		assert.Equal(t, model.RequestAssigned, r.Status)
		assert.Equal(t, "d1", r.AssignedTo)
	}
	assert.GreaterOrEqual(t, e.pub.count("d1"), 1)

	// Stops carry ETAs derived from the matrix, monotone along the route.
	for i := 1; i < len(d.Route); i++ {
		assert.True(t, d.Route[i].ETA.After(d.Route[i-1].ETA))
	}
}

func TestDebouncedEventCaughtUpByTick(t *testing.T) {
	e := newEnv(t, Config{MinPlanInterval: time.Hour})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 3), 0)
	e.newRequest(t, request("r2", 5, 2, 4), time.Second)

	d, _ := e.state.Driver("d1")
	assert.ElementsMatch(t, []string{"r1"}, d.Route.RequestIDs())

	e.now = e.now.Add(time.Second)
	require.NoError(t, e.ctrl.Tick(context.Background(), e.now))
	d, _ = e.state.Driver("d1")
	assert.ElementsMatch(t, []string{"r1", "r2"}, d.Route.RequestIDs())
}

func TestReplanWithoutChangesIsNoop(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 3), 0)
	rev := e.state.Revision()
	published := e.pub.count("d1")

	e.now = e.now.Add(time.Minute)
	require.NoError(t, e.ctrl.Tick(context.Background(), e.now))

	assert.Equal(t, rev, e.state.Revision())
	assert.Equal(t, published, e.pub.count("d1"))
}

func TestOversizedRequestFailsAfterBoundedAttempts(t *testing.T) {
	e := newEnv(t, Config{MaxPlacementAttempts: 3})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 3, Location: loc(0)}))

	e.newRequest(t, request("big", 5, 1, 2), 0)
	r, _ := e.state.Request("big")
	assert.Equal(t, model.RequestPending, r.Status)

	for i := 0; i < 2; i++ {
		e.now = e.now.Add(time.Minute)
		require.NoError(t, e.ctrl.Tick(context.Background(), e.now))
	}

	r, ok := e.state.Request("big")
	assert.False(t, ok, "failed request should leave active state, got %+v", r)
	require.Len(t, e.arch.reqs, 1)
	assert.Equal(t, model.RequestFailed, e.arch.reqs[0].Status)
	assert.Equal(t, "capacity_exceeded", e.arch.reqs[0].FailReason)
}

func TestInfeasibleKeepsExistingRoutes(t *testing.T) {
	e := newEnv(t, Config{MaxPlacementAttempts: 100})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 3), 0)
	d, _ := e.state.Driver("d1")
	committed := d.Route.Clone()

	e.newRequest(t, request("big", 50, 2, 4), time.Second)

	d, _ = e.state.Driver("d1")
	assert.True(t, d.Route.Equal(committed), "existing route must survive an unplaceable request")
	r, _ := e.state.Request("big")
	assert.Equal(t, model.RequestPending, r.Status)
}

func TestPickedUpRequestPinnedThroughReplan(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 5), 0)

	// Driver reaches the pickup.
	_, err := e.state.CompleteNextStop(context.Background(), "d1", e.now)
	require.NoError(t, err)
	r, _ := e.state.Request("r1")
	require.Equal(t, model.RequestPickedUp, r.Status)

	// A second driver sitting next to r1's stops must not steal it.
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d2", Capacity: 10, Location: loc(5)}))
	e.newRequest(t, request("r2", 2, 6, 7), time.Second)

	r, _ = e.state.Request("r1")
	assert.Equal(t, model.RequestPickedUp, r.Status)
	assert.Equal(t, "d1", r.AssignedTo)

	d1, _ := e.state.Driver("d1")
	require.Len(t, d1.Route, 1)
	assert.Equal(t, model.ActionDeliver, d1.Route[0].Action)
	assert.Equal(t, "r1", d1.Route[0].RequestID)

	d2, _ := e.state.Driver("d2")
	assert.NotContains(t, d2.Route.RequestIDs(), "r1")
}

func TestEnRouteNextStopSurvivesReplan(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 5, 6), 0)
	before, _ := e.state.Driver("d1")
	require.NotEmpty(t, before.Route)
	require.Equal(t, model.DriverEnRoute, before.Status)

	// A second driver parked on r1's pickup would be the cheaper choice, but
	// d1 is already rolling toward it.
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d2", Capacity: 10, Location: loc(5)}))
	e.newRequest(t, request("r2", 3, 4, 5), time.Second)

	d1, _ := e.state.Driver("d1")
	require.NotEmpty(t, d1.Route)
	assert.Equal(t, before.Route[0].RequestID, d1.Route[0].RequestID, "committed next stop must not change")
	assert.Equal(t, before.Route[0].Action, d1.Route[0].Action)

	r, _ := e.state.Request("r1")
	assert.Equal(t, "d1", r.AssignedTo)
	d2, _ := e.state.Driver("d2")
	assert.NotContains(t, d2.Route.RequestIDs(), "r1")
}

func TestOfflineDriverRequestMovesCleanly(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))

	e.newRequest(t, request("r1", 4, 1, 2), 0)
	r, _ := e.state.Request("r1")
	require.Equal(t, "d1", r.AssignedTo)

	require.NoError(t, e.state.SetDriverOffline("d1", true))
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d2", Capacity: 10, Location: loc(1)}))

	e.now = e.now.Add(time.Second)
	require.NoError(t, e.ctrl.Tick(context.Background(), e.now))

	// Exactly one route may carry r1 afterwards.
	d1, _ := e.state.Driver("d1")
	assert.Empty(t, d1.Route, "offline driver's route must lose the moved request")
	d2, _ := e.state.Driver("d2")
	assert.Contains(t, d2.Route.RequestIDs(), "r1")
	r, _ = e.state.Request("r1")
	assert.Equal(t, "d2", r.AssignedTo)
}

func TestTickPrunesTrackingForInactiveRequests(t *testing.T) {
	e := newEnv(t, Config{MaxPlacementAttempts: 100, DeadlineSlack: time.Hour})
	require.NoError(t, e.state.AddDriver(model.Driver{ID: "d1", Capacity: 3, Location: loc(0)}))

	deadline := e.now.Add(30 * time.Minute)
	r := request("big", 5, 1, 2)
	r.Deadline = &deadline
	e.newRequest(t, r, 0)

	e.now = e.now.Add(time.Second)
	require.NoError(t, e.ctrl.Tick(context.Background(), e.now))
	e.ctrl.mu.Lock()
	_, warned := e.ctrl.warned["big"]
	_, tracked := e.ctrl.attempts["big"]
	e.ctrl.mu.Unlock()
	assert.True(t, warned)
	assert.True(t, tracked)

	require.NoError(t, e.state.MarkFailed(context.Background(), "big", "operator_cancelled"))
	e.now = e.now.Add(time.Second)
	require.NoError(t, e.ctrl.Tick(context.Background(), e.now))

	e.ctrl.mu.Lock()
	_, warned = e.ctrl.warned["big"]
	_, tracked = e.ctrl.attempts["big"]
	e.ctrl.mu.Unlock()
	assert.False(t, warned, "terminal request leaves the deadline dedup set")
	assert.False(t, tracked, "terminal request leaves the placement tracker")
}

func TestCostUnavailableRetriedThenPlanned(t *testing.T) {
	arch := &memArchive{}
	state := fleet.New(nil, arch)
	provider := &flakyProvider{failures: 2, inner: infracost.NewHaversine(10)}
	ctrl, err := New(Config{MinPlanInterval: time.Millisecond, CostRetries: 3, CostBackoff: time.Millisecond},
		state, provider, infrasolver.NewGreedy(), events.NewFeed(), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))
	r := request("r1", 4, 1, 3)
	require.NoError(t, ctrl.HandleEvent(context.Background(), events.Event{
		Kind: events.NewRequest, Time: time.Now(), Request: &r,
	}))

	got, _ := state.Request("r1")
	assert.Equal(t, model.RequestAssigned, got.Status)
	assert.Equal(t, 3, provider.calls)
}

func TestCostExhaustedKeepsStateUntouched(t *testing.T) {
	state := fleet.New(nil, nil)
	provider := &flakyProvider{failures: 100, inner: infracost.NewHaversine(10)}
	ctrl, err := New(Config{MinPlanInterval: time.Millisecond, CostRetries: 2, CostBackoff: time.Millisecond},
		state, provider, infrasolver.NewGreedy(), events.NewFeed(), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))
	r := request("r1", 4, 1, 3)
	err = ctrl.HandleEvent(context.Background(), events.Event{
		Kind: events.NewRequest, Time: time.Now(), Request: &r,
	})
	assert.ErrorIs(t, err, cost.ErrUnavailable)

	got, _ := state.Request("r1")
	assert.Equal(t, model.RequestPending, got.Status)
	d, _ := state.Driver("d1")
	assert.Empty(t, d.Route)
}

func TestDeadlineScanEmitsOnce(t *testing.T) {
	feed := events.NewFeed()
	state := fleet.New(nil, nil)
	ctrl, err := New(Config{MinPlanInterval: time.Millisecond, DeadlineSlack: 10 * time.Minute},
		state, infracost.NewHaversine(10), infrasolver.NewGreedy(), feed, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: loc(0)}))
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	deadline := now.Add(5 * time.Minute)
	r := request("r1", 4, 1, 3)
	r.Deadline = &deadline
	require.NoError(t, state.AddRequest(r))

	require.NoError(t, ctrl.Tick(context.Background(), now))
	evs := feed.PopUntil(now)
	require.Len(t, evs, 1)
	assert.Equal(t, events.DeadlineApproaching, evs[0].Kind)
	assert.Equal(t, "r1", evs[0].RequestID)

	require.NoError(t, ctrl.Tick(context.Background(), now.Add(time.Minute)))
	assert.Empty(t, feed.PopUntil(now.Add(time.Minute)))
}
