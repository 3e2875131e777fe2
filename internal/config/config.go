// Package config holds the run options of the simulator.
package config

import "fmt"

// Formation strategies.
const (
	FormationNash = "nash"
)

// Payoff division strategies.
const (
	PayoffShapley = "shapley"
)

// Config is the top-level configuration for a simulation run.
type Config struct {
	Scenario  string          `mapstructure:"scenario"`
	Formation FormationConfig `mapstructure:"formation"`
	Optim     OptimConfig     `mapstructure:"optim"`
	Sim       SimConfig       `mapstructure:"sim"`
	Output    OutputConfig    `mapstructure:"output"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Verbosity int             `mapstructure:"verbosity"`
}

// FormationConfig controls the coalition-formation engine.
type FormationConfig struct {
	Strategy          string  `mapstructure:"strategy"`  // coalition formation category
	Payoff            string  `mapstructure:"payoff"`    // coalition value division category
	Interval          float64 `mapstructure:"interval"`  // simulated time between activations
	FindAllPartitions bool    `mapstructure:"find_all_partitions"`
	ServiceDelayTol   float64 `mapstructure:"service_delay_tol"` // relative tolerance of the delay model
}

// OptimConfig holds the knobs passed to the VM-placement solver. They bound
// the search effort, never the constraints.
type OptimConfig struct {
	RelTolerance float64 `mapstructure:"rel_tolerance"` // relative optimality gap in [0,1]
	TimeLimit    float64 `mapstructure:"time_limit"`    // wall-clock seconds, <= 0 means unlimited
}

// SimConfig controls replication and stopping.
type SimConfig struct {
	CILevel                float64 `mapstructure:"ci_level"`
	CIRelPrecision         float64 `mapstructure:"ci_rel_precision"`
	MaxReplicationDuration float64 `mapstructure:"max_rep_len"`
	MaxNumReplications     int     `mapstructure:"max_num_rep"` // 0 means unlimited
	RngSeed                uint64  `mapstructure:"rng_seed"`
}

// OutputConfig names the CSV artifacts. Empty paths disable the artifact.
type OutputConfig struct {
	StatsFile string `mapstructure:"stats_file"`
	TraceFile string `mapstructure:"trace_file"`
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // host:port, empty disables the endpoint
}

// Default returns a Config with the simulator's default options.
func Default() Config {
	return Config{
		Formation: FormationConfig{
			Strategy:        FormationNash,
			Payoff:          PayoffShapley,
			Interval:        0,
			ServiceDelayTol: 1e-5,
		},
		Optim: OptimConfig{
			RelTolerance: 0,
			TimeLimit:    -1,
		},
		Sim: SimConfig{
			CILevel:        0.95,
			CIRelPrecision: 0.04,
			RngSeed:        5489,
		},
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("scenario file not specified")
	}
	if c.Formation.Strategy != FormationNash {
		return fmt.Errorf("unknown coalition formation category %q", c.Formation.Strategy)
	}
	if c.Formation.Payoff != PayoffShapley {
		return fmt.Errorf("unknown coalition value division category %q", c.Formation.Payoff)
	}
	if c.Formation.Interval < 0 {
		return fmt.Errorf("formation interval must be non-negative, got %v", c.Formation.Interval)
	}
	if c.Formation.ServiceDelayTol < 0 || c.Formation.ServiceDelayTol > 1 {
		return fmt.Errorf("service delay tolerance must be in [0,1], got %v", c.Formation.ServiceDelayTol)
	}
	if c.Optim.RelTolerance < 0 || c.Optim.RelTolerance > 1 {
		return fmt.Errorf("optimizer relative tolerance must be in [0,1], got %v", c.Optim.RelTolerance)
	}
	if c.Sim.CILevel < 0 || c.Sim.CILevel > 1 {
		return fmt.Errorf("confidence interval level must be in [0,1], got %v", c.Sim.CILevel)
	}
	if c.Sim.CIRelPrecision < 0 || c.Sim.CIRelPrecision > 1 {
		return fmt.Errorf("confidence interval relative precision must be in [0,1], got %v", c.Sim.CIRelPrecision)
	}
	if c.Sim.MaxReplicationDuration < 0 {
		return fmt.Errorf("max replication duration must be non-negative, got %v", c.Sim.MaxReplicationDuration)
	}
	if c.Sim.MaxNumReplications < 0 {
		return fmt.Errorf("max number of replications must be non-negative, got %d", c.Sim.MaxNumReplications)
	}
	if c.Verbosity < 0 {
		c.Verbosity = 0
	} else if c.Verbosity > 9 {
		c.Verbosity = 9
	}
	return nil
}

// String renders the options in key: value form for startup logging.
func (c Config) String() string {
	return fmt.Sprintf("scenario: %s, formation: %s, formation-interval: %v, payoff: %s, find-all-parts: %t, "+
		"optim-reltol: %v, optim-tilim: %v, service-delay-tol: %v, ci-level: %v, ci-rel-precision: %v, "+
		"max-rep-len: %v, max-num-rep: %d, rng-seed: %d, stats-file: %s, trace-file: %s, verbosity: %d",
		c.Scenario, c.Formation.Strategy, c.Formation.Interval, c.Formation.Payoff, c.Formation.FindAllPartitions,
		c.Optim.RelTolerance, c.Optim.TimeLimit, c.Formation.ServiceDelayTol, c.Sim.CILevel, c.Sim.CIRelPrecision,
		c.Sim.MaxReplicationDuration, c.Sim.MaxNumReplications, c.Sim.RngSeed,
		c.Output.StatsFile, c.Output.TraceFile, c.Verbosity)
}
