package metrics

import (
	"context"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/internal/eventbus"
)

// StartCollector subscribes to the event bus and forwards planning events to
// the sink. It stops when the context is canceled.
func StartCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe(64)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case coremetrics.PlanCycle:
					_ = sink.RecordPlanCycle(e)
				case coremetrics.RequestOutcome:
					if r, ok := sink.(coremetrics.OutcomeRecorder); ok {
						_ = r.RecordRequestOutcome(e)
					}
				case coremetrics.StopCompletion:
					if r, ok := sink.(coremetrics.StopRecorder); ok {
						_ = r.RecordStopCompletion(e)
					}
				}
			}
		}
	}()
}
