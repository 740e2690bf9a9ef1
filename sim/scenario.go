package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/courierops/dispatchd/core/model"
)

// DriverSpec describes one simulated driver.
type DriverSpec struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity float64 `json:"capacity"`
}

// ArrivalSpec schedules one request arrival relative to scenario start.
type ArrivalSpec struct {
	ID          string        `json:"id"`
	At          time.Duration `json:"at"`
	PickupLat   float64       `json:"pickup_lat"`
	PickupLon   float64       `json:"pickup_lon"`
	DeliveryLat float64       `json:"delivery_lat"`
	DeliveryLon float64       `json:"delivery_lon"`
	Size        float64       `json:"size"`
	Priority    int           `json:"priority"`
	// DeadlineIn sets a deadline relative to arrival; zero means none.
	DeadlineIn time.Duration `json:"deadline_in"`
}

// Scenario is a scripted simulation run.
type Scenario struct {
	Name     string        `json:"name"`
	Horizon  time.Duration `json:"horizon"`
	Step     time.Duration `json:"step"`
	Drivers  []DriverSpec  `json:"drivers"`
	Arrivals []ArrivalSpec `json:"arrivals"`
}

// SetDefaults applies sane defaults.
func (s *Scenario) SetDefaults() {
	if s.Horizon == 0 {
		s.Horizon = 4 * time.Hour
	}
	if s.Step == 0 {
		s.Step = 10 * time.Second
	}
}

// Validate checks the scenario for inconsistencies.
func (s Scenario) Validate() error {
	if len(s.Drivers) == 0 {
		return fmt.Errorf("scenario needs at least one driver")
	}
	if s.Step <= 0 || s.Horizon <= 0 {
		return fmt.Errorf("step and horizon must be positive")
	}
	for _, d := range s.Drivers {
		if d.Capacity <= 0 {
			return fmt.Errorf("driver %s: capacity must be positive", d.ID)
		}
	}
	for _, a := range s.Arrivals {
		if a.Size <= 0 {
			return fmt.Errorf("request %s: size must be positive", a.ID)
		}
	}
	return nil
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}
	var s Scenario
	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		TagName: "json",
		Result:  &s,
	}
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "json", DecoderConfig: dc}); err != nil {
		return nil, err
	}
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Demo generates a random scenario around a city center: drivers clustered
// near the middle, arrivals spread over the first half of the horizon.
func Demo(drivers, requests int, seed int64) *Scenario {
	rng := rand.New(rand.NewSource(seed))
	jitter := func(span float64) float64 { return (rng.Float64() - 0.5) * span }

	const centerLat, centerLon = 48.8566, 2.3522
	s := &Scenario{Name: "demo", Horizon: 4 * time.Hour, Step: 10 * time.Second}
	for i := 0; i < drivers; i++ {
		s.Drivers = append(s.Drivers, DriverSpec{
			ID:       fmt.Sprintf("driver-%02d", i+1),
			Lat:      centerLat + jitter(0.02),
			Lon:      centerLon + jitter(0.02),
			Capacity: 10,
		})
	}
	for i := 0; i < requests; i++ {
		a := ArrivalSpec{
			ID:          uuid.NewString(),
			At:          time.Duration(rng.Int63n(int64(s.Horizon / 2))),
			PickupLat:   centerLat + jitter(0.1),
			PickupLon:   centerLon + jitter(0.1),
			DeliveryLat: centerLat + jitter(0.1),
			DeliveryLon: centerLon + jitter(0.1),
			Size:        float64(1 + rng.Intn(5)),
			Priority:    rng.Intn(3),
		}
		if rng.Float64() < 0.3 {
			a.DeadlineIn = time.Hour
		}
		s.Arrivals = append(s.Arrivals, a)
	}
	return s
}

// Request converts the arrival into a model request created at the given
// absolute time.
func (a ArrivalSpec) Request(createdAt time.Time) model.Request {
	r := model.Request{
		ID:        a.ID,
		Pickup:    model.Location{Lat: a.PickupLat, Lon: a.PickupLon},
		Delivery:  model.Location{Lat: a.DeliveryLat, Lon: a.DeliveryLon},
		Size:      a.Size,
		Priority:  a.Priority,
		CreatedAt: createdAt,
	}
	if a.DeadlineIn > 0 {
		dl := createdAt.Add(a.DeadlineIn)
		r.Deadline = &dl
	}
	return r
}
