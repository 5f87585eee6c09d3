// Package commands defines the tracker command tree.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	driver   string
	db       string
	envFile  string
	logLevel string
	verbose  bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tracker",
		Short: "Student performance tracker",
		Long: `Tracker records students and their per-subject grades in a relational store
and answers questions about them: student averages, subject toppers and class
averages. The store is an embedded SQLite file by default or PostgreSQL.

Configuration comes from environment variables (optionally a .env file);
the flags below override them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", "", `Storage driver: "sqlite" or "postgres" (overrides STORAGE_DRIVER)`)
	flags.StringVar(&opts.db, "db", "", "SQLite file path or PostgreSQL URL, depending on the driver")
	flags.StringVar(&opts.envFile, "env-file", "", "Path of the .env file to load (default .env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newServeCommand(opts),
		newMenuCommand(opts),
		newExportCommand(opts),
		newEventsCommand(opts),
		newVersionCommand(),
	)

	return root
}
