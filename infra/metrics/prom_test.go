package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/internal/eventbus"
)

func TestPromSinkRecordsCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordPlanCycle(coremetrics.PlanCycle{
		Trigger:    "event",
		Outcome:    "planned",
		SolverTime: 20 * time.Millisecond,
		Unassigned: 3,
		Changed:    2,
	}))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.unassigned))

	// The gauge tracks the last cycle only; a clean cycle resets it.
	require.NoError(t, sink.RecordPlanCycle(coremetrics.PlanCycle{Trigger: "timer", Outcome: "noop"}))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.unassigned))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.cycles.WithLabelValues("event", "planned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.cycles.WithLabelValues("timer", "noop")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.changed))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSink(reg)
	require.NoError(t, err)
	_, err = NewPromSink(reg)
	require.NoError(t, err)
}

func TestPromSinkOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordRequestOutcome(coremetrics.RequestOutcome{Status: "failed", Reason: "capacity_exceeded"}))
	require.NoError(t, sink.RecordStopCompletion(coremetrics.StopCompletion{Action: "pickup"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("failed", "capacity_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.stops.WithLabelValues("pickup")))
}

func TestCollectorForwardsBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	require.NoError(t, err)

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartCollector(ctx, bus, sink)

	bus.Publish(coremetrics.PlanCycle{Trigger: "event", Outcome: "planned"})
	bus.Publish(coremetrics.StopCompletion{Action: "deliver"})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.cycles.WithLabelValues("event", "planned")) == 1.0 &&
			testutil.ToFloat64(sink.stops.WithLabelValues("deliver")) == 1.0
	}, time.Second, 10*time.Millisecond)
}
