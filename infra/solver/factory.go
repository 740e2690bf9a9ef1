package solver

import (
	"github.com/courierops/dispatchd/core/factory"
	coresolver "github.com/courierops/dispatchd/core/solver"
)

// init registers the built-in solver engines.
func init() {
	_ = coresolver.RegisterEngine("greedy", func(map[string]any) (coresolver.Solver, error) {
		return NewGreedy(), nil
	})

	_ = coresolver.RegisterEngine("anneal", func(conf map[string]any) (coresolver.Solver, error) {
		var c struct {
			Seed       int64   `json:"seed"`
			Iterations int     `json:"iterations"`
			Temp       float64 `json:"temp"`
			Cooling    float64 `json:"cooling"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		a := NewAnneal(c.Seed)
		if c.Iterations > 0 {
			a.Iterations = c.Iterations
		}
		if c.Temp > 0 {
			a.Temp = c.Temp
		}
		if c.Cooling > 0 {
			a.Cooling = c.Cooling
		}
		return a, nil
	})
}
