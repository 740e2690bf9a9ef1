package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanCycle forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordPlanCycle(ev PlanCycle) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequestOutcome forwards the event to sinks that support it.
func (m *MultiSink) RecordRequestOutcome(ev RequestOutcome) error {
	for _, s := range m.Sinks {
		if r, ok := s.(OutcomeRecorder); ok {
			if err := r.RecordRequestOutcome(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStopCompletion forwards the event to sinks that support it.
func (m *MultiSink) RecordStopCompletion(ev StopCompletion) error {
	for _, s := range m.Sinks {
		if r, ok := s.(StopRecorder); ok {
			if err := r.RecordStopCompletion(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
