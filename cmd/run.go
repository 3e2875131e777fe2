package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fogcoal/fogcoal/internal/logging"
	"github.com/fogcoal/fogcoal/internal/metrics"
	"github.com/fogcoal/fogcoal/internal/scenario"
	"github.com/fogcoal/fogcoal/internal/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a coalition-formation experiment over a scenario file",
	Long: `Loads a scenario file, runs the replicated discrete-event simulation and
writes per-trigger statistics and trace CSV files.`,
	RunE: runExperiment,
}

func init() {
	f := runCmd.Flags()
	f.String("scenario", "", "path to the scenario file (required)")
	f.String("formation", "nash", "coalition formation category: nash")
	f.Float64("formation-interval", 0, "simulated time between coalition formation activations")
	f.String("payoff", "shapley", "coalition value division category: shapley")
	f.Bool("find-all-parts", false, "report every stable partition per interval instead of the best one")
	f.Float64("optim-reltol", 0, "relative tolerance of the placement optimizer, in [0,1]")
	f.Float64("optim-tilim", -1, "wall-clock time limit of the placement optimizer in seconds")
	f.Float64("service-delay-tol", 1e-5, "relative tolerance of the service delay model, in [0,1]")
	f.Float64("ci-level", 0.95, "confidence interval level, in [0,1]")
	f.Float64("ci-rel-precision", 0.04, "target relative precision of the confidence interval half-width, in [0,1]")
	f.Float64("sim-max-rep-len", 0, "maximum simulated duration of each replication")
	f.Int("sim-max-num-rep", 0, "maximum number of replications, 0 for unlimited")
	f.Uint64("rng-seed", 5489, "random number generation seed")
	f.String("out-stats-file", "", "output statistics CSV file")
	f.String("out-trace-file", "", "output trace CSV file")
	f.String("metrics-listen", "", "address for the Prometheus /metrics endpoint (disabled when empty)")

	_ = runCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(runCmd)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Verbosity)
	defer log.Sync()

	scen, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	log.Infow("scenario loaded", "scenario", scen.String())
	log.Infow("options", "options", cfg.String())

	if cfg.Metrics.Listen != "" {
		srv, errc := metrics.Serve(cfg.Metrics.Listen)
		defer srv.Close()
		go func() {
			if err := <-errc; err != nil {
				log.Warnw("metrics endpoint stopped", "error", err)
			}
		}()
	}

	exp, err := sim.NewExperiment(scen, cfg, log)
	if err != nil {
		return err
	}
	if err := exp.Run(); err != nil {
		return fmt.Errorf("running experiment: %w", err)
	}
	return nil
}

// applyRunFlags maps the run flags onto the config, letting explicit flags
// override config-file and environment values.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if v, _ := f.GetString("scenario"); f.Changed("scenario") || cfg.Scenario == "" {
		cfg.Scenario = v
	}
	if v, _ := f.GetString("formation"); f.Changed("formation") {
		cfg.Formation.Strategy = v
	}
	if v, _ := f.GetFloat64("formation-interval"); f.Changed("formation-interval") {
		cfg.Formation.Interval = v
	}
	if v, _ := f.GetString("payoff"); f.Changed("payoff") {
		cfg.Formation.Payoff = v
	}
	if v, _ := f.GetBool("find-all-parts"); f.Changed("find-all-parts") {
		cfg.Formation.FindAllPartitions = v
	}
	if v, _ := f.GetFloat64("optim-reltol"); f.Changed("optim-reltol") {
		cfg.Optim.RelTolerance = v
	}
	if v, _ := f.GetFloat64("optim-tilim"); f.Changed("optim-tilim") {
		cfg.Optim.TimeLimit = v
	}
	if v, _ := f.GetFloat64("service-delay-tol"); f.Changed("service-delay-tol") {
		cfg.Formation.ServiceDelayTol = v
	}
	if v, _ := f.GetFloat64("ci-level"); f.Changed("ci-level") {
		cfg.Sim.CILevel = v
	}
	if v, _ := f.GetFloat64("ci-rel-precision"); f.Changed("ci-rel-precision") {
		cfg.Sim.CIRelPrecision = v
	}
	if v, _ := f.GetFloat64("sim-max-rep-len"); f.Changed("sim-max-rep-len") {
		cfg.Sim.MaxReplicationDuration = v
	}
	if v, _ := f.GetInt("sim-max-num-rep"); f.Changed("sim-max-num-rep") {
		cfg.Sim.MaxNumReplications = v
	}
	if v, _ := f.GetUint64("rng-seed"); f.Changed("rng-seed") {
		cfg.Sim.RngSeed = v
	}
	if v, _ := f.GetString("out-stats-file"); f.Changed("out-stats-file") {
		cfg.Output.StatsFile = v
	}
	if v, _ := f.GetString("out-trace-file"); f.Changed("out-trace-file") {
		cfg.Output.TraceFile = v
	}
	if v, _ := f.GetString("metrics-listen"); f.Changed("metrics-listen") {
		cfg.Metrics.Listen = v
	}
}
