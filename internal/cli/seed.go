package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiwicki/asgardbot/internal/content"
)

// NewSeedCmd builds the CLI subcommand that validates a YAML seed file
// without touching any game state.
func NewSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Validate a YAML quest seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := content.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d tasks\n", args[0], len(seeds))
			for i, s := range seeds {
				kind := "question"
				if len(s.Answers) == 0 {
					kind = "announcement"
				}
				line := fmt.Sprintf("  %d. %s, %d points", i+1, kind, s.Points)
				if s.Requires > 0 {
					line += fmt.Sprintf(", unlocked by %d", s.Requires)
				}
				if s.At != nil {
					line += fmt.Sprintf(", scheduled %s", s.At.Format("2006-01-02 15:04"))
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
