package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// GlobalOptions holds the flags shared by every command.
type GlobalOptions struct {
	Config  string
	Verbose bool
}

// NewRootCmd creates the top-level apidelta command. When level is not nil,
// --verbose lowers it to debug.
func NewRootCmd(version string, level *slog.LevelVar) (*cobra.Command, *GlobalOptions) {
	var opts GlobalOptions

	cmd := &cobra.Command{
		Use:   "apidelta",
		Short: "API change analyzer",
		Long:  "Apidelta compares two versions of a library's API and classifies every difference by its compatibility impact.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose && level != nil {
				level.Set(slog.LevelDebug)
			}
		},
		SilenceUsage: true,
	}

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "Configuration file (YAML, JSON or TOML)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	return cmd, &opts
}
