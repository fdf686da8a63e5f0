package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supportflow/conversation-router/pkg/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Parse(path)
			if err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Printf("Configuration valid: model=%s candidate_window=%d store=%s\n",
				cfg.Matcher.Model, cfg.Matcher.CandidateWindow, cfg.Store.Driver)
			return nil
		},
	}
}
