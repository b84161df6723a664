package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emenda-labs/apidelta/pkg/archive"
)

// CompareJavaOptions holds the parsed flags for "compare java".
type CompareJavaOptions struct {
	Old string
	New string
}

// NewCompareJavaCmd creates the "compare java" subcommand.
func NewCompareJavaCmd(global *GlobalOptions, shared *CompareOptions, load LoadFunc) *cobra.Command {
	var opts CompareJavaOptions

	cmd := &cobra.Command{
		Use:   "java",
		Short: "Compare two versions of a Java library",
		Long:  "Compare two Java source trees or -sources.jar archives.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateCompareJavaFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &comparison{
				global:      global,
				opts:        shared,
				load:        load,
				oldArtifact: opts.Old,
				newArtifact: opts.New,
			}
			return c.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Old, "old", "", "Old source directory or sources archive (required)")
	cmd.Flags().StringVar(&opts.New, "new", "", "New source directory or sources archive (required)")

	cmd.MarkFlagRequired("old")
	cmd.MarkFlagRequired("new")

	return cmd
}

func validateCompareJavaFlags(opts CompareJavaOptions) error {
	for _, side := range []struct{ flag, path string }{{"--old", opts.Old}, {"--new", opts.New}} {
		if side.path == "" {
			return fmt.Errorf("%s is required", side.flag)
		}
		info, err := os.Stat(side.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%s path does not exist: %s", side.flag, side.path)
			}
			return fmt.Errorf("cannot access %s path: %w", side.flag, err)
		}
		if !info.IsDir() && !archive.IsArchive(side.path) {
			return fmt.Errorf("%s path is neither a directory nor a sources archive: %s", side.flag, side.path)
		}
	}
	return nil
}
