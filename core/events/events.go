package events

import (
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// Kind identifies the event type.
type Kind int

const (
	NewRequest Kind = iota
	DriverArrived
	DeadlineApproaching
)

func (k Kind) String() string {
	switch k {
	case NewRequest:
		return "new_request"
	case DriverArrived:
		return "driver_arrived"
	case DeadlineApproaching:
		return "deadline_approaching"
	default:
		return "unknown"
	}
}

// Event is a single timestamped world event. Request is populated for
// NewRequest; RequestID for DeadlineApproaching; DriverID for DriverArrived.
type Event struct {
	Kind      Kind
	Time      time.Time
	Request   *model.Request
	RequestID string
	DriverID  string
}
