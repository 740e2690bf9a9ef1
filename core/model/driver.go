package model

// DriverStatus describes a driver's execution state. Offline is orthogonal to
// route progress: an offline driver still owes its queued stops but receives
// no new assignments.
type DriverStatus int

const (
	DriverIdle DriverStatus = iota
	DriverEnRoute
	DriverOffline
)

func (s DriverStatus) String() string {
	switch s {
	case DriverIdle:
		return "idle"
	case DriverEnRoute:
		return "en_route"
	case DriverOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Driver is a vehicle in the fleet. Load is the sum of sizes of requests
// picked up but not yet delivered and never exceeds Capacity.
type Driver struct {
	ID       string       `json:"id"`
	Location Location     `json:"location"`
	Capacity float64      `json:"capacity"`
	Load     float64      `json:"load"`
	Status   DriverStatus `json:"status"`
	Route    Route        `json:"route,omitempty"`
}

// Available reports whether the driver may receive new assignments.
func (d Driver) Available() bool {
	return d.Status != DriverOffline
}
