package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chainsight/decisioncore/internal/audit"
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/decision"
	"github.com/chainsight/decisioncore/internal/governor"
	"github.com/chainsight/decisioncore/internal/metrics"
	"github.com/chainsight/decisioncore/internal/signal"
)

// evaluateInput is the on-disk request format: one snapshot plus the market
// pressure metrics fetched by the caller.
type evaluateInput struct {
	Snapshot signal.Snapshot       `json:"snapshot"`
	Pressure signal.MarketPressure `json:"pressure"`
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <input.json>",
		Short: "Evaluate one signal snapshot into a decision record",
		Long: `Reads a JSON file holding a signal snapshot and market pressure metrics,
runs the full pipeline, and prints the decision record as JSON on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluate,
	}
	addOutputFlags(cmd.Flags())
	return cmd
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.Bool("pretty", false, "Indent the JSON output")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var input evaluateInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}

	reg := metrics.NewRegistry()
	if err := reg.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	trail := audit.NewTrail(reg.AuditSink())
	gov := governor.New(cfg.Governor, trail)

	eng, err := decision.NewEngine(cfg, gov, decision.WithMetrics(reg))
	if err != nil {
		return err
	}

	record, err := eng.Evaluate(context.Background(), &input.Snapshot, input.Pressure)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	log.Info().
		Str("entity", record.EntityID).
		Str("state", string(record.State)).
		Float64("confidence", record.Confidence).
		Int("contradictions", len(record.Contradictions)).
		Msg("evaluation complete")

	enc := json.NewEncoder(os.Stdout)
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(record)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Str("version", cfg.Version).Msg("thresholds loaded")
	return cfg, nil
}
