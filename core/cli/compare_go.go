package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/emenda-labs/apidelta/pkg/gomod"
)

// CompareGoOptions holds the parsed flags for "compare go".
type CompareGoOptions struct {
	Module string
	Old    string
	New    string
	Repo   string
}

// NewCompareGoCmd creates the "compare go" subcommand.
//
// --old and --new are versions of --module, module@version artifacts or
// local module directories. Without --old the version the repository at
// --repo requires is compared.
func NewCompareGoCmd(global *GlobalOptions, shared *CompareOptions, load LoadFunc) *cobra.Command {
	var opts CompareGoOptions

	cmd := &cobra.Command{
		Use:   "go",
		Short: "Compare two versions of a Go module",
		Long:  "Compare two versions of a Go module fetched from the module proxy, or two local module directories.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateCompareGoFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			oldArtifact, newArtifact, err := resolveGoArtifacts(opts)
			if err != nil {
				return err
			}
			c := &comparison{
				global:      global,
				opts:        shared,
				load:        load,
				loadOld:     LoadOptions{Module: opts.Module},
				loadNew:     LoadOptions{Module: opts.Module},
				oldArtifact: oldArtifact,
				newArtifact: newArtifact,
			}
			return c.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Module, "module", "", "Go module path")
	cmd.Flags().StringVar(&opts.Old, "old", "", "Old version, module@version or directory (default: the version required by --repo)")
	cmd.Flags().StringVar(&opts.New, "new", "", "New version, module@version or directory (required)")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "Repository whose go.mod provides the old version")

	cmd.MarkFlagRequired("new")

	return cmd
}

func validateCompareGoFlags(opts CompareGoOptions) error {
	if opts.New == "" {
		return fmt.Errorf("--new is required")
	}
	if opts.Old == "" {
		if opts.Module == "" || opts.Repo == "" {
			return fmt.Errorf("--module and --repo are required without --old")
		}
		info, err := os.Stat(opts.Repo)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("repo path does not exist: %s", opts.Repo)
			}
			return fmt.Errorf("cannot access repo path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("repo path is not a directory: %s", opts.Repo)
		}
	}
	for _, v := range []string{opts.Old, opts.New} {
		if isBareVersion(v) && opts.Module == "" {
			return fmt.Errorf("--module is required to resolve version %s", v)
		}
	}
	return nil
}

// resolveGoArtifacts turns the flags into loader artifacts.
func resolveGoArtifacts(opts CompareGoOptions) (oldArtifact, newArtifact string, err error) {
	oldVersion := opts.Old
	if oldVersion == "" {
		oldVersion, err = gomod.FindModuleVersion(opts.Repo, opts.Module)
		if err != nil {
			return "", "", err
		}
		slog.Debug("Resolved old version from go.mod", "module", opts.Module, "version", oldVersion)
	}

	if oldVersion == opts.New {
		return "", "", fmt.Errorf("old and new are both %s", opts.New)
	}
	if semver.IsValid(oldVersion) && semver.IsValid(opts.New) && semver.Compare(opts.New, oldVersion) < 0 {
		slog.Warn("New version is older than old version", "old", oldVersion, "new", opts.New)
	}

	return goArtifact(opts.Module, oldVersion), goArtifact(opts.Module, opts.New), nil
}

// goArtifact qualifies a bare version with the module path.
func goArtifact(module, v string) string {
	if isBareVersion(v) {
		return module + "@" + v
	}
	return v
}

// isBareVersion reports whether v is a semantic version rather than a path
// or module@version.
func isBareVersion(v string) bool {
	return semver.IsValid(v) && !strings.ContainsAny(v, "/@")
}
