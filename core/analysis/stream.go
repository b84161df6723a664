package analysis

import (
	"context"
	"fmt"

	"github.com/emenda-labs/apidelta/core/report"
)

// Stream drains the run into reporters: reports in order, then the run
// diagnostics, then the summary. It stops pulling reports once ctx is done.
func Stream(ctx context.Context, run *Run, reporters ...report.Reporter) error {
	sink := report.Multi(reporters)
	for r := range run.Reports() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Report(r); err != nil {
			return fmt.Errorf("report %s: %w", r.Key, err)
		}
	}
	for _, d := range run.Diagnostics() {
		if err := sink.Diagnostic(d); err != nil {
			return fmt.Errorf("report diagnostic: %w", err)
		}
	}
	return sink.Finish(run.Summary())
}

// Summary converts the run statistics for reporters.
func (r *Run) Summary() report.Summary {
	s := r.Stats()
	return report.Summary{
		Old:         r.corr.Old.Label(),
		New:         r.corr.New.Label(),
		Entries:     s.Entries,
		Reports:     s.Reports,
		Differences: s.Differences,
		Problems:    s.Problems + s.Duplicates,
		BySeverity:  s.BySeverity,
		Max:         s.MaxSeverity(),
	}
}
