package mqtt

import (
	"sync"

	coremqtt "github.com/courierops/dispatchd/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records published assignments for tests.
type MockPublisher struct {
	mu     sync.Mutex
	Routes map[string][]coremqtt.RouteAssignment
	Err    error
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Routes: make(map[string][]coremqtt.RouteAssignment)}
}

// PublishRoute records the assignment or returns the configured error.
func (m *MockPublisher) PublishRoute(a coremqtt.RouteAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Routes[a.DriverID] = append(m.Routes[a.DriverID], a)
	return nil
}

// Last returns the most recent assignment for the driver.
func (m *MockPublisher) Last(driverID string) (coremqtt.RouteAssignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := m.Routes[driverID]
	if len(rs) == 0 {
		return coremqtt.RouteAssignment{}, false
	}
	return rs[len(rs)-1], true
}

// Disconnect implements the Publisher interface.
func (m *MockPublisher) Disconnect() {}
