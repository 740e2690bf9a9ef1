// Package mqtt defines the outbound interface used to push route assignments
// to driver devices. The concrete Paho client lives under infra/mqtt.
package mqtt

import (
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// StopMessage is one route stop as published to a driver device.
type StopMessage struct {
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Label     string    `json:"label,omitempty"`
	ETA       time.Time `json:"eta,omitempty"`
}

// RouteAssignment is the message body pushed on a driver topic whenever the
// controller commits a changed route.
type RouteAssignment struct {
	DriverID string        `json:"driver_id"`
	Revision uint64        `json:"revision"`
	Stops    []StopMessage `json:"stops"`
	IssuedAt time.Time     `json:"issued_at"`
}

// NewRouteAssignment converts a committed route into its wire form.
func NewRouteAssignment(driverID string, rev uint64, route model.Route, issuedAt time.Time) RouteAssignment {
	stops := make([]StopMessage, len(route))
	for i, s := range route {
		stops[i] = StopMessage{
			RequestID: s.RequestID,
			Action:    s.Action.String(),
			Lat:       s.Location.Lat,
			Lon:       s.Location.Lon,
			Label:     s.Location.Label,
			ETA:       s.ETA,
		}
	}
	return RouteAssignment{DriverID: driverID, Revision: rev, Stops: stops, IssuedAt: issuedAt}
}

// Publisher pushes route assignments to driver devices.
type Publisher interface {
	PublishRoute(a RouteAssignment) error
	Disconnect()
}
