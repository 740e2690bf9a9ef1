// Package metrics defines the sink interfaces used to record planning
// observability events. Implementations live under infra/metrics and can be
// combined with a MultiSink when several backends are configured.
package metrics

import "time"

// PlanCycle captures the outcome of one planning cycle.
type PlanCycle struct {
	Trigger    string
	Outcome    string
	SolverTime time.Duration
	MatrixTime time.Duration
	Requests   int
	Placed     int
	Unassigned int
	Changed    int
	Released   int
	Cost       float64
	Time       time.Time
}

// RequestOutcome records a request reaching a terminal status.
type RequestOutcome struct {
	RequestID string
	Status    string
	Reason    string
	DriverID  string
	Time      time.Time
}

// StopCompletion records a driver finishing a route stop.
type StopCompletion struct {
	DriverID  string
	RequestID string
	Action    string
	Time      time.Time
}

// MetricsSink records planning cycles for observability purposes.
type MetricsSink interface {
	RecordPlanCycle(ev PlanCycle) error
}

// OutcomeRecorder is implemented by sinks that track terminal requests.
type OutcomeRecorder interface {
	RecordRequestOutcome(ev RequestOutcome) error
}

// StopRecorder is implemented by sinks that track completed stops.
type StopRecorder interface {
	RecordStopCompletion(ev StopCompletion) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanCycle(PlanCycle) error { return nil }
