package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "decisioncore"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Decision & attribution engine for crypto market signals",
		Version: version,
		Long: `decisioncore aggregates weighted category signals into a bounded
confidence score, classifies a discrete market state, flags cross-signal
dislocations, ranks wallet influence, and gates ML confidence adjustment
behind an auditable safety state machine.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to thresholds YAML (defaults to built-in configuration)")

	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newGovernorCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
