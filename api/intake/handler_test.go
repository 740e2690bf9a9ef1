package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierops/dispatchd/core/events"
)

func TestIntakeAcceptsRequest(t *testing.T) {
	feed := events.NewFeed()
	h := NewHandler(feed, nil)

	body := `{"pickup_lat":48.86,"pickup_lon":2.36,"delivery_lat":48.87,"delivery_lon":2.37,"size":3,"priority":1}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])

	evs := feed.PopUntil(time.Now().UTC())
	require.Len(t, evs, 1)
	assert.Equal(t, events.NewRequest, evs[0].Kind)
	require.NotNil(t, evs[0].Request)
	assert.Equal(t, resp["id"], evs[0].Request.ID)
	assert.Equal(t, 3.0, evs[0].Request.Size)
}

func TestIntakeRejectsBadInput(t *testing.T) {
	h := NewHandler(events.NewFeed(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`{"size":0}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
