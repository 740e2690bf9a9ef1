package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/core/factory"
	"github.com/courierops/dispatchd/core/model"
	coresolver "github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/infra/cost"
	"github.com/courierops/dispatchd/infra/logger"
	"github.com/courierops/dispatchd/internal/eventbus"
	"github.com/courierops/dispatchd/pkg/export"
	"github.com/courierops/dispatchd/sim"

	_ "github.com/courierops/dispatchd/infra/solver"
)

var (
	scenarioPath string
	simDrivers   int
	simRequests  int
	simSeed      int64
	simSpeedMPS  float64
	simAnneal    bool
	simOut       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a fleet scenario against the control loop",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario YAML file (omit for a generated demo)")
	simulateCmd.Flags().IntVar(&simDrivers, "drivers", 5, "demo scenario driver count")
	simulateCmd.Flags().IntVar(&simRequests, "requests", 20, "demo scenario request count")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "demo scenario random seed")
	simulateCmd.Flags().Float64Var(&simSpeedMPS, "speed", 11.11, "assumed driving speed in m/s")
	simulateCmd.Flags().BoolVar(&simAnneal, "anneal", false, "use the annealing solver instead of greedy")
	simulateCmd.Flags().StringVarP(&simOut, "out", "o", "", "write terminal requests to this file (.csv or .json)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		scen *sim.Scenario
		err  error
	)
	if scenarioPath != "" {
		scen, err = sim.LoadScenario(scenarioPath)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
	} else {
		scen = sim.Demo(simDrivers, simRequests, simSeed)
	}

	var provider corecost.Provider = cost.NewHaversine(simSpeedMPS)
	var engine coresolver.Solver
	if simAnneal {
		engine, err = coresolver.NewEngine(coresolver.Config{})
		if err != nil {
			return err
		}
	} else {
		engine, err = coresolver.NewEngine(coresolver.Config{Engine: factory.ModuleConfig{Type: "greedy"}})
		if err != nil {
			return err
		}
	}

	log := logger.New("sim")
	runner, err := sim.NewRunner(scen, dispatch.Config{}, sim.Deps{
		Provider: corecost.NewCached(provider),
		Solver:   engine,
		Bus:      eventbus.New(),
		Log:      log,
	})
	if err != nil {
		return err
	}

	log.Infof("running scenario %q: %d drivers, %d requests", scen.Name, len(scen.Drivers), len(scen.Arrivals))
	rep, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	log.Infof("done in %s simulated: %d delivered, %d failed, %d remaining",
		rep.Elapsed, rep.Delivered, rep.Failed, rep.Remaining)
	if simOut != "" {
		if err := writeReport(simOut, runner.Terminal()); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Infof("wrote %s", simOut)
	}
	if rep.Remaining > 0 {
		return fmt.Errorf("%d requests left unresolved at horizon", rep.Remaining)
	}
	return nil
}

func writeReport(path string, reqs []model.Request) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.HasSuffix(path, ".csv") {
		return export.WriteCSV(f, reqs)
	}
	return export.WriteJSON(f, reqs)
}
