package solver

import "github.com/courierops/dispatchd/core/factory"

// Config selects and configures the solver.
type Config struct {
	Engine factory.ModuleConfig `json:"engine"`
}

var engineRegistry = factory.NewRegistry[Solver]()

// RegisterEngine adds a solver factory identified by name.
func RegisterEngine(name string, f factory.Factory[Solver]) error {
	return engineRegistry.Register(name, f)
}

// NewEngine creates a Solver from the provided configuration. An empty type
// selects the default engine "anneal".
func NewEngine(cfg Config) (Solver, error) {
	mc := cfg.Engine
	if mc.Type == "" {
		mc.Type = "anneal"
	}
	return engineRegistry.Create(mc)
}
