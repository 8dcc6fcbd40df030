package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asgardbot",
		Short: "Telegram quest bot: tasks, answers, scores",
	}
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSeedCmd())
	return cmd
}
