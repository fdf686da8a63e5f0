package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supportflow/conversation-router/cmd/convctl/commands"
	"github.com/supportflow/conversation-router/pkg/observability"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if _, err := observability.InitLoggerFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:   "convctl",
		Short: "Conversation Router control CLI",
		Long: `convctl is a command-line tool for operating the conversation router.

Common workflows:
  convctl config validate           # Validate your configuration
  convctl evaluate --state New ...  # Check a conversation against its SLA`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	}

	rootCmd.PersistentFlags().StringP("config", "c", "config/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewEvaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
