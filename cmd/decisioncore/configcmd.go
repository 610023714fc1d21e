package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chainsight/decisioncore/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Threshold configuration commands",
	}

	validateCmd := &cobra.Command{
		Use:   "validate <thresholds.yaml>",
		Short: "Validate a thresholds file, including weight-sum invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			log.Info().Str("version", cfg.Version).Msg("configuration valid")
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	defaultPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the conventional thresholds file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.DefaultConfigPath())
		},
	}

	cmd.AddCommand(validateCmd, showCmd, defaultPathCmd)
	return cmd
}
