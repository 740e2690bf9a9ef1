// Package events defines the timestamped world events driving the dispatch
// loop and the pull-based feed that orders them.
//
// Available event kinds:
//   - NewRequest: a transport request entered the system
//   - DriverArrived: a driver completed a stop
//   - DeadlineApproaching: a request's deadline slack crossed the threshold
//
// The feed hands events out in non-decreasing timestamp order with FIFO
// tie-breaking; the dispatch controller relies on this for determinism.
package events
