package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emenda-labs/apidelta/core/analysis"
	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check/builtin"
	"github.com/emenda-labs/apidelta/core/config"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/report"
)

// LoadOptions configures the loading of one side of a comparison.
type LoadOptions struct {
	// Module renames the module of a Go source directory.
	Module string
	Jobs   int
	Logger *slog.Logger
}

// LoadFunc builds the forest of one artifact. It is injected by the wiring
// layer (cmd/apidelta/main.go).
type LoadFunc func(ctx context.Context, artifact string, opts LoadOptions) (*forest.Forest, error)

// CompareOptions holds the flags shared by the compare subcommands. Empty
// values defer to the configuration.
type CompareOptions struct {
	Format    string
	FailOn    string
	Threshold string
	Color     string
	Jobs      int
	Descend   bool
	Renames   bool
}

// FailError reports that the analysis reached the --fail-on severity.
type FailError struct {
	Max    changespec.Severity
	FailOn changespec.Severity
}

func (e *FailError) Error() string {
	return fmt.Sprintf("API differences reach severity %s (fail on %s)", e.Max, e.FailOn)
}

// NewCompareCmd creates the "compare" parent command. Its persistent flags
// are shared with the language subcommands.
func NewCompareCmd() (*cobra.Command, *CompareOptions) {
	var opts CompareOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two versions of an API",
		Long:  "Compare the old and new version of a library and report every API difference with its compatibility classification.",
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Format, "format", "", "Output format: text or json")
	flags.StringVar(&opts.FailOn, "fail-on", "", "Fail when a difference reaches this severity (none, non_breaking, potentially_breaking, breaking)")
	flags.StringVar(&opts.Threshold, "threshold", "", "Hide differences below this severity")
	flags.StringVar(&opts.Color, "color", "", "Color output: auto, always or never")
	flags.IntVarP(&opts.Jobs, "jobs", "j", 0, "Concurrent workers for loading and analysis (0 = number of CPUs)")
	flags.BoolVar(&opts.Descend, "descend", false, "Also report the members of added and removed elements")
	flags.BoolVar(&opts.Renames, "renames", false, "Hint at the likely new name of removed members")

	return cmd, &opts
}

// comparison is one resolved compare invocation.
type comparison struct {
	global      *GlobalOptions
	opts        *CompareOptions
	load        LoadFunc
	loadOld     LoadOptions
	loadNew     LoadOptions
	oldArtifact string
	newArtifact string
}

// run loads both artifacts, analyzes them and streams the reports to out.
func (c *comparison) run(ctx context.Context, out io.Writer) error {
	logger := slog.Default()

	cfg, err := config.NewLoader(logger).Load(c.global.Config)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	c.override(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	filters, err := cfg.Filters()
	if err != nil {
		return err
	}
	checks, err := cfg.Registry(builtin.Default())
	if err != nil {
		return err
	}
	threshold, err := cfg.Threshold()
	if err != nil {
		return err
	}

	var oldForest, newForest *forest.Forest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := c.load(gctx, c.oldArtifact, c.loadOld)
		oldForest = f
		return err
	})
	g.Go(func() error {
		f, err := c.load(gctx, c.newArtifact, c.loadNew)
		newForest = f
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if oldForest.Dialect() != newForest.Dialect() {
		return fmt.Errorf("cannot compare a %s API with a %s API", oldForest.Dialect(), newForest.Dialect())
	}
	logger.Debug("Loaded forests", "old", oldForest.Label(), "oldElements", oldForest.Len(),
		"new", newForest.Label(), "newElements", newForest.Len())

	run := analysis.Analyze(oldForest, newForest, analysis.Options{
		Filters:          filters,
		Checks:           checks,
		Suppress:         cfg.Suppressed(),
		Jobs:             cfg.Analysis.Jobs,
		DescendUnmatched: cfg.Analysis.DescendUnmatched,
		DetectRenames:    cfg.Analysis.DetectRenames,
		Logger:           logger,
	})

	rep, err := report.New(cfg.Report.Format, out, report.Options{
		Color:     useColor(cfg.Report.Color, out),
		Threshold: threshold,
	})
	if err != nil {
		return err
	}
	if err := analysis.Stream(ctx, run, rep); err != nil {
		return err
	}

	failOn, enabled, err := cfg.FailOn()
	if err != nil {
		return err
	}
	stats := run.Stats()
	if highest := stats.MaxSeverity(); enabled && stats.Differences > 0 && highest >= failOn {
		return &FailError{Max: highest, FailOn: failOn}
	}
	return nil
}

// override applies the flags that were set on top of the configuration.
func (c *comparison) override(cfg *config.Config) {
	if c.opts.Format != "" {
		cfg.Report.Format = c.opts.Format
	}
	if c.opts.FailOn != "" {
		cfg.Report.FailOn = c.opts.FailOn
	}
	if c.opts.Threshold != "" {
		cfg.Report.Threshold = c.opts.Threshold
	}
	if c.opts.Color != "" {
		cfg.Report.Color = c.opts.Color
	}
	if c.opts.Jobs > 0 {
		cfg.Analysis.Jobs = c.opts.Jobs
	}
	if c.opts.Descend {
		cfg.Analysis.DescendUnmatched = true
	}
	if c.opts.Renames {
		cfg.Analysis.DetectRenames = true
	}
	c.loadOld.Jobs = cfg.Analysis.Jobs
	c.loadNew.Jobs = cfg.Analysis.Jobs
	c.loadOld.Logger = slog.Default()
	c.loadNew.Logger = slog.Default()
}

// useColor resolves a color mode. auto colors only a terminal stdout.
func useColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return out == os.Stdout && !color.NoColor
	}
}
