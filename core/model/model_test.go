package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		ok       bool
	}{
		{RequestPending, RequestAssigned, true},
		{RequestPending, RequestPickedUp, false},
		{RequestAssigned, RequestPending, true},
		{RequestAssigned, RequestPickedUp, true},
		{RequestPickedUp, RequestAssigned, false},
		{RequestPickedUp, RequestDelivered, true},
		{RequestDelivered, RequestAssigned, false},
		{RequestDelivered, RequestPending, false},
		{RequestFailed, RequestPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestRouteValidOrdering(t *testing.T) {
	good := Route{
		{RequestID: "a", Action: ActionPickup},
		{RequestID: "b", Action: ActionPickup},
		{RequestID: "a", Action: ActionDeliver},
		{RequestID: "b", Action: ActionDeliver},
	}
	assert.True(t, good.ValidOrdering(nil))

	bad := Route{
		{RequestID: "a", Action: ActionDeliver},
		{RequestID: "a", Action: ActionPickup},
	}
	assert.False(t, bad.ValidOrdering(nil))

	onBoard := Route{{RequestID: "a", Action: ActionDeliver}}
	assert.False(t, onBoard.ValidOrdering(nil))
	assert.True(t, onBoard.ValidOrdering(map[string]bool{"a": true}))
}

func TestRouteEqualIgnoresETA(t *testing.T) {
	a := Route{{RequestID: "r", Action: ActionPickup, ETA: time.Unix(1, 0)}}
	b := Route{{RequestID: "r", Action: ActionPickup, ETA: time.Unix(99, 0)}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Route{{RequestID: "r", Action: ActionDeliver}}))
}

func TestHaversine(t *testing.T) {
	mumbai := Location{Lat: 19.075983, Lon: 72.877655}
	same := mumbai.HaversineM(mumbai)
	assert.Equal(t, 0.0, same)

	pune := Location{Lat: 18.520430, Lon: 73.856743}
	d := mumbai.HaversineM(pune)
	// roughly 120 km
	assert.InDelta(t, 120000, d, 10000)
}

func TestRequestSlack(t *testing.T) {
	now := time.Now()
	dl := now.Add(30 * time.Minute)
	r := Request{Deadline: &dl}
	s, ok := r.Slack(now)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Minute, s)

	_, ok = Request{}.Slack(now)
	assert.False(t, ok)
}
