// Package app wires the configured collaborators into a running dispatch
// service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apifleet "github.com/courierops/dispatchd/api/fleet"
	"github.com/courierops/dispatchd/api/intake"
	"github.com/courierops/dispatchd/config"
	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/core/events"
	"github.com/courierops/dispatchd/core/factory"
	"github.com/courierops/dispatchd/core/fleet"
	coremetrics "github.com/courierops/dispatchd/core/metrics"
	coremqtt "github.com/courierops/dispatchd/core/mqtt"
	coresolver "github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/infra/archive"
	"github.com/courierops/dispatchd/infra/logger"
	"github.com/courierops/dispatchd/infra/metrics"
	"github.com/courierops/dispatchd/infra/mqtt"
	"github.com/courierops/dispatchd/internal/eventbus"

	// register built-in providers and solver engines
	_ "github.com/courierops/dispatchd/infra/cost"
	_ "github.com/courierops/dispatchd/infra/solver"
)

// Service owns the control loop and its collaborators.
type Service struct {
	cfg   *config.Config
	state *fleet.State
	feed  *events.Feed
	ctrl  *dispatch.Controller
	bus   *eventbus.Bus
	sink  coremetrics.MetricsSink
	pub   coremqtt.Publisher
	redis *archive.Redis
	log   logger.Logger
}

// New builds a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	applyLogLevel(cfg.Logging.Level)
	log := logger.New("service")

	var (
		arch  fleet.Archiver
		redis *archive.Redis
	)
	switch cfg.Archive.Backend {
	case "redis":
		var rc archive.RedisConfig
		if err := factory.Decode(cfg.Archive.Conf, &rc); err != nil {
			return nil, fmt.Errorf("archive config: %w", err)
		}
		r, err := archive.NewRedis(rc)
		if err != nil {
			return nil, fmt.Errorf("redis archive: %w", err)
		}
		arch, redis = r, r
	default:
		arch = archive.NewMemory()
	}

	state := fleet.New(log, arch)
	feed := events.NewFeed()

	provider, err := corecost.NewProvider(cfg.Cost)
	if err != nil {
		return nil, fmt.Errorf("cost provider: %w", err)
	}
	engine, err := coresolver.NewEngine(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}

	var pub coremqtt.Publisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewPahoPublisher(cfg.MQTT.Config)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		pub = p
	}

	bus := eventbus.New()
	ctrl, err := dispatch.New(cfg.Dispatch, state, provider, engine, feed, pub, bus, log)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:   cfg,
		state: state,
		feed:  feed,
		ctrl:  ctrl,
		bus:   bus,
		sink:  sink,
		pub:   pub,
		redis: redis,
		log:   log,
	}, nil
}

// State exposes the fleet state for API handlers and tests.
func (s *Service) State() *fleet.State { return s.state }

// Feed exposes the event feed, mainly for injecting events in tests.
func (s *Service) Feed() *events.Feed { return s.feed }

// Run pumps world events into the controller until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartCollector(ctx, s.bus, s.sink)

	if addr := s.cfg.Metrics.Addr; addr != "" {
		go func() {
			extra := map[string]http.Handler{
				"/api/fleet":    apifleet.NewSnapshotHandler(s.state),
				"/api/requests": intake.NewHandler(s.feed, s.log),
			}
			if err := metrics.StartPromServer(ctx, addr, extra); err != nil {
				s.log.Errorf("http server: %v", err)
			}
		}()
		s.log.Infof("serving metrics and API on %s", addr)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, ev := range s.feed.PopUntil(now) {
				if err := s.ctrl.HandleEvent(ctx, ev); err != nil {
					s.log.Errorf("handle %s event: %v", ev.Kind, err)
				}
			}
			if err := s.ctrl.Tick(ctx, now); err != nil {
				s.log.Errorf("tick: %v", err)
			}
		}
	}
}

// Close releases external connections.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Disconnect()
	}
	s.bus.Close()
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func applyLogLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}
