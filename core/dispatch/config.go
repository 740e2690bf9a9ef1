package dispatch

import (
	"fmt"
	"time"
)

// Config tunes the control loop.
type Config struct {
	// MinPlanInterval debounces event-triggered replans. Events arriving
	// inside the window mark the loop dirty; the next tick catches up.
	MinPlanInterval time.Duration `json:"min_plan_interval"`
	// SolverBudget bounds a single solver invocation.
	SolverBudget time.Duration `json:"solver_budget"`
	// CostRetries and CostBackoff govern retries when the cost provider is
	// temporarily unavailable. Distances are never guessed.
	CostRetries int           `json:"cost_retries"`
	CostBackoff time.Duration `json:"cost_backoff"`
	// MaxPlacementAttempts bounds how many consecutive cycles may leave a
	// request unplaced before it fails with reason capacity_exceeded.
	MaxPlacementAttempts int `json:"max_placement_attempts"`
	// DeadlineSlack is the remaining-time threshold that triggers an urgent
	// replan for a request.
	DeadlineSlack time.Duration `json:"deadline_slack"`
}

// SetDefaults fills unset fields with production defaults.
func (c *Config) SetDefaults() {
	if c.MinPlanInterval == 0 {
		c.MinPlanInterval = 5 * time.Second
	}
	if c.SolverBudget == 0 {
		c.SolverBudget = 2 * time.Second
	}
	if c.CostRetries == 0 {
		c.CostRetries = 3
	}
	if c.CostBackoff == 0 {
		c.CostBackoff = 500 * time.Millisecond
	}
	if c.MaxPlacementAttempts == 0 {
		c.MaxPlacementAttempts = 3
	}
	if c.DeadlineSlack == 0 {
		c.DeadlineSlack = 10 * time.Minute
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.MinPlanInterval < 0 {
		return fmt.Errorf("min_plan_interval must not be negative")
	}
	if c.SolverBudget <= 0 {
		return fmt.Errorf("solver_budget must be positive")
	}
	if c.CostRetries < 0 {
		return fmt.Errorf("cost_retries must not be negative")
	}
	if c.MaxPlacementAttempts <= 0 {
		return fmt.Errorf("max_placement_attempts must be positive")
	}
	if c.DeadlineSlack <= 0 {
		return fmt.Errorf("deadline_slack must be positive")
	}
	return nil
}
