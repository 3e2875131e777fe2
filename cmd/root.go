// Package cmd wires the command-line interface of the simulator.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fogcoal/fogcoal/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fogcoal",
	Short: "Coalition-formation simulator for fog providers",
	Long: `Fogcoal simulates coalitions of fog providers pooling their fog nodes to
serve latency-sensitive services under time-varying load.

At fixed simulated-time intervals it sizes every service with an M/M/c delay
model, solves a min-cost VM placement for each candidate coalition, divides
the joint profit with the Shapley value and selects the Nash-stable
partitions. Per-provider profits are reported with confidence-interval based
stopping across independent replications.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: fogcoal.yaml)")
	rootCmd.PersistentFlags().Int("verbosity", 0, "verbosity level, 0 (minimum) to 9 (maximum)")

	_ = viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))
}

func loadConfig() error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fogcoal")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.fogcoal")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("FOGCOAL")
	viper.AutomaticEnv()

	// Read config file (not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return nil
}
