package model

import "time"

// RequestStatus describes the lifecycle state of a transport request.
// Transitions are monotonic: a request never moves back to an earlier state.
type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestAssigned
	RequestPickedUp
	RequestDelivered
	RequestFailed
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestAssigned:
		return "assigned"
	case RequestPickedUp:
		return "picked_up"
	case RequestDelivered:
		return "delivered"
	case RequestFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the request has left the active fleet state.
func (s RequestStatus) Terminal() bool {
	return s == RequestDelivered || s == RequestFailed
}

// CanTransition reports whether moving from s to next honors the monotonic
// lifecycle. Releasing an assigned request back to pending is the single
// allowed backward edge; it models reassignment before pickup.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case RequestPending:
		return next == RequestAssigned || next == RequestFailed
	case RequestAssigned:
		return next == RequestPending || next == RequestPickedUp || next == RequestFailed
	case RequestPickedUp:
		return next == RequestDelivered || next == RequestFailed
	default:
		return false
	}
}

// Request is a single transport order: pick a parcel up at one location and
// deliver it at another. Size consumes driver capacity between pickup and
// delivery.
type Request struct {
	ID         string        `json:"id"`
	Pickup     Location      `json:"pickup"`
	Delivery   Location      `json:"delivery"`
	Size       float64       `json:"size"`
	Priority   int           `json:"priority"`
	CreatedAt  time.Time     `json:"created_at"`
	Deadline   *time.Time    `json:"deadline,omitempty"`
	Status     RequestStatus `json:"status"`
	AssignedTo string        `json:"assigned_to,omitempty"`
	FailReason string        `json:"fail_reason,omitempty"`
}

// Slack returns the remaining time before the deadline at the given instant.
// Requests without a deadline report ok=false.
func (r Request) Slack(now time.Time) (time.Duration, bool) {
	if r.Deadline == nil {
		return 0, false
	}
	return r.Deadline.Sub(now), true
}
