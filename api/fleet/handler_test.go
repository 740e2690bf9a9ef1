package fleet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corefleet "github.com/courierops/dispatchd/core/fleet"
	"github.com/courierops/dispatchd/core/model"
)

func TestSnapshotHandler(t *testing.T) {
	state := corefleet.New(nil, nil)
	require.NoError(t, state.AddDriver(model.Driver{ID: "d1", Capacity: 10, Location: model.Location{Lat: 48.85, Lon: 2.35}}))
	require.NoError(t, state.AddRequest(model.Request{
		ID:       "r1",
		Size:     3,
		Pickup:   model.Location{Lat: 48.86, Lon: 2.36},
		Delivery: model.Location{Lat: 48.87, Lon: 2.37},
	}))

	h := NewSnapshotHandler(state)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fleet", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var view struct {
		Revision uint64 `json:"revision"`
		Drivers  []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"drivers"`
		Requests []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Len(t, view.Drivers, 1)
	assert.Equal(t, "idle", view.Drivers[0].Status)
	require.Len(t, view.Requests, 1)
	assert.Equal(t, "pending", view.Requests[0].Status)
}

func TestSnapshotHandlerRejectsPost(t *testing.T) {
	h := NewSnapshotHandler(corefleet.New(nil, nil))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fleet", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
