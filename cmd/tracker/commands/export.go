package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write every student as one JSON line to a text file",
		Long: `Export snapshots all students in one transaction and writes them, one JSON
object per line, to path. Without a path the EXPORT_PATH setting is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts, bootstrapOptions{quiet: true, logOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			var path string
			if len(args) == 1 {
				path = args[0]
			}

			written, err := a.tracker.ExportToTxt(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", written)
			return nil
		},
	}
}
