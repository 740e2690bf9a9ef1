// Package archive stores terminal requests after the fleet state drops them.
// The dispatch loop never reads archived requests back; they exist for audit
// and reporting.
package archive

import (
	"context"
	"sync"

	"github.com/courierops/dispatchd/core/model"
)

// Memory keeps archived requests in memory. Used in simulation and tests.
type Memory struct {
	mu   sync.Mutex
	reqs []model.Request
}

// NewMemory creates an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{}
}

// Archive implements fleet.Archiver.
func (m *Memory) Archive(_ context.Context, req model.Request) error {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	return nil
}

// All returns a copy of the archived requests in arrival order.
func (m *Memory) All() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.reqs))
	copy(out, m.reqs)
	return out
}
