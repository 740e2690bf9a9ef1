// Package intake accepts transport requests over HTTP and feeds them into
// the dispatch loop.
package intake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/model"
)

type requestBody struct {
	ID          string     `json:"id"`
	PickupLat   float64    `json:"pickup_lat"`
	PickupLon   float64    `json:"pickup_lon"`
	DeliveryLat float64    `json:"delivery_lat"`
	DeliveryLon float64    `json:"delivery_lon"`
	Size        float64    `json:"size"`
	Priority    int        `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// NewHandler returns a handler accepting POST /api/requests. Accepted
// requests enter the event feed; the dispatch controller picks them up on
// its next cycle.
func NewHandler(feed *events.Feed, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Size <= 0 {
			http.Error(w, "size must be positive", http.StatusBadRequest)
			return
		}
		if body.ID == "" {
			body.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		req := model.Request{
			ID:        body.ID,
			Pickup:    model.Location{Lat: body.PickupLat, Lon: body.PickupLon},
			Delivery:  model.Location{Lat: body.DeliveryLat, Lon: body.DeliveryLon},
			Size:      body.Size,
			Priority:  body.Priority,
			CreatedAt: now,
			Deadline:  body.Deadline,
		}
		feed.Push(events.Event{Kind: events.NewRequest, Time: now, Request: &req})
		if log != nil {
			log.Infof("accepted request %s", req.ID)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": req.ID})
	})
}
