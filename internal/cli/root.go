package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tgienger/taskboard/internal/config"
)

// BuildInfo is stamped into the binary via ldflags
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("taskboard %s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
}

// RootOptions holds global flags for all commands. Non-empty values win
// over the config file and the environment.
type RootOptions struct {
	ConfigPath string
	DB         string
	User       string
	LogLevel   string
}

// NewRootCommand creates the root command. Without a subcommand it opens
// the board.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "A terminal task board",
		Long:          "Track tasks on a four column board. Changes show up immediately and are rolled back if the store refuses them.",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd.Context(), opts)
		},
	}
	cmd.SetVersionTemplate(info.String() + "\n")

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "sqlite database path")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "act as this user")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (DEBUG|INFO|WARN|ERROR)")

	// Add subcommands
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewTagsCommand(opts))
	cmd.AddCommand(NewVersionCommand(info))

	return cmd
}
