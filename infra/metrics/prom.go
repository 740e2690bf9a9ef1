package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
)

// PromSink records planning activity in Prometheus metrics.
type PromSink struct {
	cycles     *prometheus.CounterVec
	solverTime prometheus.Histogram
	matrixTime prometheus.Histogram
	unassigned prometheus.Gauge
	changed    prometheus.Counter
	outcomes   *prometheus.CounterVec
	stops      *prometheus.CounterVec
}

// NewPromSink registers planning metrics on the provided registerer. If reg
// is nil the default registerer is used. Already registered collectors are
// reused so repeated construction in tests does not fail.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_plan_cycles_total",
			Help: "Total number of planning cycles by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		solverTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_solver_duration_seconds",
			Help:    "Time spent inside the route solver per cycle",
			Buckets: prometheus.DefBuckets,
		}),
		matrixTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_cost_matrix_duration_seconds",
			Help:    "Time spent fetching the cost matrix per cycle",
			Buckets: prometheus.DefBuckets,
		}),
		unassigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_requests_unassigned",
			Help: "Requests the last cycle could not place",
		}),
		changed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_route_changes_total",
			Help: "Total driver route replacements committed",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_request_outcomes_total",
			Help: "Requests reaching a terminal status",
		}, []string{"status", "reason"}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_stops_completed_total",
			Help: "Route stops completed by drivers",
		}, []string{"action"}),
	}

	for i, c := range []prometheus.Collector{s.cycles, s.solverTime, s.matrixTime, s.unassigned, s.changed, s.outcomes, s.stops} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				s.cycles = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				s.solverTime = are.ExistingCollector.(prometheus.Histogram)
			case 2:
				s.matrixTime = are.ExistingCollector.(prometheus.Histogram)
			case 3:
				s.unassigned = are.ExistingCollector.(prometheus.Gauge)
			case 4:
				s.changed = are.ExistingCollector.(prometheus.Counter)
			case 5:
				s.outcomes = are.ExistingCollector.(*prometheus.CounterVec)
			case 6:
				s.stops = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
	return s, nil
}

// RecordPlanCycle implements metrics.MetricsSink.
func (s *PromSink) RecordPlanCycle(ev coremetrics.PlanCycle) error {
	s.cycles.WithLabelValues(ev.Trigger, ev.Outcome).Inc()
	if ev.SolverTime > 0 {
		s.solverTime.Observe(ev.SolverTime.Seconds())
	}
	if ev.MatrixTime > 0 {
		s.matrixTime.Observe(ev.MatrixTime.Seconds())
	}
	s.unassigned.Set(float64(ev.Unassigned))
	if ev.Changed > 0 {
		s.changed.Add(float64(ev.Changed))
	}
	return nil
}

// RecordRequestOutcome implements metrics.OutcomeRecorder.
func (s *PromSink) RecordRequestOutcome(ev coremetrics.RequestOutcome) error {
	s.outcomes.WithLabelValues(ev.Status, ev.Reason).Inc()
	return nil
}

// RecordStopCompletion implements metrics.StopRecorder.
func (s *PromSink) RecordStopCompletion(ev coremetrics.StopCompletion) error {
	s.stops.WithLabelValues(ev.Action).Inc()
	return nil
}
