package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chainsight/decisioncore/internal/audit"
	"github.com/chainsight/decisioncore/internal/governor"
)

// newGovernorCmd groups the governance control surface. Each subcommand
// operates on a fresh in-process governor: it exists for local inspection
// and dry-running transition rules, not for live operation (the deployed
// control plane drives the governor through its Go API).
func newGovernorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "governor",
		Short: "Inspect and dry-run ML governance transitions",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the start-state governance snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			gov, err := newLocalGovernor(cmd)
			if err != nil {
				return err
			}
			return printJSON(gov.Snapshot())
		},
	}

	setModeCmd := &cobra.Command{
		Use:   "set-mode <OFF|ADVISOR|ASSIST>",
		Short: "Dry-run a mode transition against the start state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gov, err := newLocalGovernor(cmd)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")
			gates, _ := cmd.Flags().GetBool("assume-gates-pass")
			if gates {
				if _, err := gov.EvaluateGates(allPassReport(), actor); err != nil {
					return err
				}
			}
			state, err := gov.SetMode(governor.Mode(strings.ToUpper(args[0])), governor.Approval{Actor: actor})
			if err != nil {
				return fmt.Errorf("transition rejected: %w", err)
			}
			return printJSON(state)
		},
	}
	setModeCmd.Flags().String("actor", "", "Operator identity recorded in the audit trail")
	setModeCmd.Flags().Bool("assume-gates-pass", false, "Record an all-pass gate evaluation first")

	killCmd := &cobra.Command{
		Use:   "kill <reason>",
		Short: "Dry-run a manual kill switch trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gov, err := newLocalGovernor(cmd)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")
			state, err := gov.TriggerKillSwitch(args[0], actor)
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	killCmd.Flags().String("actor", "", "Operator identity recorded in the audit trail")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Dry-run a kill switch reset (trigger first, then reset)",
		RunE: func(cmd *cobra.Command, args []string) error {
			gov, err := newLocalGovernor(cmd)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")
			if _, err := gov.TriggerKillSwitch("dry-run", actor); err != nil {
				return err
			}
			state, err := gov.ResetKillSwitch(governor.Approval{Actor: actor})
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	resetCmd.Flags().String("actor", "", "Operator identity recorded in the audit trail")

	cmd.AddCommand(statusCmd, setModeCmd, killCmd, resetCmd)
	return cmd
}

func newLocalGovernor(cmd *cobra.Command) (*governor.Governor, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return governor.New(cfg.Governor, audit.NewTrail()), nil
}

func allPassReport() governor.GateReport {
	passed := map[string]bool{}
	for _, name := range governor.GateNames {
		passed[name] = true
	}
	return governor.NewGateReport(passed)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
