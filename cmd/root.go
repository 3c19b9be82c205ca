package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pedflow-sim/pedflow-sim/sim"
	"github.com/pedflow-sim/pedflow-sim/sim/observe"
	"github.com/pedflow-sim/pedflow-sim/sim/scenario"
)

var (
	// CLI flags for the run command
	floorPlanPath string   // Path to the floor-plan JSON
	scenarioPath  string   // Path to the scenario YAML
	periodIndex   int      // Period to run; -1 = whole scenario
	seedOverride  int64    // Overrides the scenario's random_seed when != 0
	logLevel      string   // Log verbosity level
	disabledEdges []string // Edge IDs removed for this run
	jsonSummary   bool     // Emit the run summary as JSON on stdout
	metricsAddr   string   // Address for the Prometheus /metrics endpoint; "" = disabled
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pedflow-sim",
	Short: "Tick-stepped pedestrian flow simulator for building graphs",
}

// runCmd executes one simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pedestrian flow simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		graph, err := sim.LoadFloorPlanFile(floorPlanPath)
		if err != nil {
			return fmt.Errorf("floor plan: %w", err)
		}
		if len(disabledEdges) > 0 {
			graph, err = graph.WithEdgesRemoved(disabledEdges)
			if err != nil {
				return fmt.Errorf("disabling edges: %w", err)
			}
		}

		spec, err := scenario.Load(scenarioPath)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		if err := spec.ValidateEndpoints(graph); err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		seed := spec.RandomSeed
		if seedOverride != 0 {
			seed = seedOverride
		}

		rng := sim.NewRunRNG(sim.NewSimulationKey(seed))
		profiles, err := scenario.Compile(spec, rng.Stream(), periodIndex)
		if err != nil {
			return fmt.Errorf("compiling scenario: %w", err)
		}
		logrus.Infof("Compiled %d agents (seed %d)", len(profiles), seed)

		engine, err := sim.NewSimulator(graph, profiles, spec.EngineConfig(), rng)
		if err != nil {
			return fmt.Errorf("building simulator: %w", err)
		}
		if metricsAddr != "" {
			collector, err := observe.NewRunCollector(nil)
			if err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}
			engine.AttachObserver(collector)
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
					logrus.Warnf("metrics server exited: %v", err)
				}
			}()
			logrus.Infof("Serving metrics on %s/metrics", metricsAddr)
		}
		if err := engine.Run(); err != nil {
			return fmt.Errorf("running simulation: %w", err)
		}

		summary := engine.Finalize()
		if jsonSummary {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		printSummary(summary)
		return nil
	},
}

// printSummary displays the aggregated run metrics.
func printSummary(s sim.RunSummary) {
	fmt.Println("=== Simulation Summary ===")
	fmt.Printf("Agents               : %d (%d completed, %d legs skipped)\n", s.TotalAgents, s.CompletedAgents, s.SkippedLegs)
	fmt.Printf("Mean travel time     : %.2f s\n", s.MeanTravelTime)
	fmt.Printf("p50 / p90 / p95      : %.2f / %.2f / %.2f s\n", s.P50TravelTime, s.P90TravelTime, s.P95TravelTime)
	fmt.Printf("Clearance time       : %.2f s\n", s.ClearanceTime)
	fmt.Printf("Percent late         : %.1f%%\n", s.PercentLate)
	fmt.Printf("Max edge occupancy   : %d\n", s.MaxEdgeDensity)
	fmt.Printf("Congestion events    : %d\n", s.CongestionEvents)
	fmt.Printf("Total throughput     : %d\n", s.TotalThroughput)
	fmt.Printf("Ticks simulated      : %d\n", s.Ticks)
}

func init() {
	runCmd.Flags().StringVar(&floorPlanPath, "floorplan", "", "path to the floor-plan JSON (required)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to the scenario YAML (required)")
	runCmd.Flags().IntVar(&periodIndex, "period", scenario.WholeScenario, "period index to run (-1 = whole scenario)")
	runCmd.Flags().Int64Var(&seedOverride, "seed", 0, "override the scenario's random seed (0 = use scenario)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	runCmd.Flags().StringSliceVar(&disabledEdges, "disable-edge", nil, "edge ID to remove for this run (repeatable)")
	runCmd.Flags().BoolVar(&jsonSummary, "json", false, "emit the run summary as JSON")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	_ = runCmd.MarkFlagRequired("floorplan")
	_ = runCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
