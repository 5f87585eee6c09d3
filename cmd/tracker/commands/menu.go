package commands

import (
	"github.com/spf13/cobra"

	"github.com/alem-hub/student-tracker/internal/interface/console"
)

func newMenuCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Run the interactive menu",
		Long: `Menu reads numbered choices from standard input and runs the matching
operation until you choose 0 or input ends. Logs go to stderr at warn level
unless --verbose is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts, bootstrapOptions{quiet: true, logOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			return console.NewMenu(a.tracker, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}
