package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/infra/logger"
)

// InfluxSink writes planning events to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails, so a missing backend never stalls dispatching.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlanCycle writes the cycle as a line protocol point.
func (s *InfluxSink) RecordPlanCycle(ev coremetrics.PlanCycle) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_cycle").
		AddTag("trigger", ev.Trigger).
		AddTag("outcome", ev.Outcome).
		AddField("solver_ms", ev.SolverTime.Milliseconds()).
		AddField("matrix_ms", ev.MatrixTime.Milliseconds()).
		AddField("requests", ev.Requests).
		AddField("placed", ev.Placed).
		AddField("unassigned", ev.Unassigned).
		AddField("changed", ev.Changed).
		AddField("released", ev.Released).
		AddField("cost", ev.Cost).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRequestOutcome writes the terminal request as a point.
func (s *InfluxSink) RecordRequestOutcome(ev coremetrics.RequestOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("request_outcome").
		AddTag("status", ev.Status).
		AddTag("reason", ev.Reason).
		AddField("request_id", ev.RequestID).
		AddField("driver_id", ev.DriverID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
