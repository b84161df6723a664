// Package analysis ties the engine together: it filters two forests,
// matches them, dispatches checks over the correspondence and aggregates
// the differences into one report per element.
package analysis

import (
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/check/builtin"
	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/match"
)

// Options configures an analysis.
type Options struct {
	// Filters restricts the elements taking part. Nil includes everything.
	Filters *filter.Chain
	// Checks defaults to builtin.Default().
	Checks *check.Registry
	// Suppress drops differences with these codes.
	Suppress []changespec.Code
	// Jobs bounds how many entries are evaluated concurrently. Values
	// below 2 evaluate sequentially.
	Jobs int
	// DescendUnmatched reports the members of added and removed elements too.
	DescendUnmatched bool
	// DetectRenames attaches the likely new name to removed members.
	DetectRenames bool
	Logger        *slog.Logger
}

// Stats summarises a run. It is complete once Reports has been drained.
type Stats struct {
	Entries     int
	Matched     int
	Added       int
	Removed     int
	Reports     int
	Differences int
	BySeverity  map[changespec.Severity]int
	Problems    int
	Duplicates  int
}

// Run is one analysis between two forests.
type Run struct {
	corr       *match.Correspondence
	dispatcher *check.Dispatcher
	jobs       int
	logger     *slog.Logger
	renames    map[int]match.Rename

	started atomic.Bool

	mu       sync.Mutex
	stats    Stats
	problems []error
}

// Analyze filters and matches old and new. Checks run lazily while Reports
// is consumed.
func Analyze(old, new *forest.Forest, opts Options) *Run {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checks := opts.Checks
	if checks == nil {
		checks = builtin.Default()
	}

	mopts := match.Options{DescendUnmatched: opts.DescendUnmatched}
	if opts.Filters.Len() > 0 {
		mopts.OldView = opts.Filters.View(old)
		mopts.NewView = opts.Filters.View(new)
	}
	corr := match.Match(old, new, mopts)

	r := &Run{
		corr: corr,
		dispatcher: check.NewDispatcher(checks,
			check.WithSuppressed(opts.Suppress...),
			check.WithLogger(logger),
		),
		jobs:   opts.Jobs,
		logger: logger,
	}
	r.stats.BySeverity = map[changespec.Severity]int{}
	r.stats.Entries = len(corr.Entries)
	r.stats.Matched, r.stats.Added, r.stats.Removed = corr.Counts()
	r.stats.Duplicates = len(corr.Diagnostics)
	for _, d := range corr.Diagnostics {
		logger.Warn("Ambiguous element key", "error", d)
	}
	if opts.DetectRenames {
		r.renames = map[int]match.Rename{}
		for _, rn := range match.Renames(corr) {
			r.renames[rn.Removed] = rn
			r.renames[rn.Added] = rn
		}
	}
	logger.Debug("Matched forests",
		slog.String("old", old.Label()),
		slog.String("new", new.Label()),
		slog.Int("entries", r.stats.Entries),
		slog.Int("matched", r.stats.Matched),
		slog.Int("added", r.stats.Added),
		slog.Int("removed", r.stats.Removed))
	return r
}

// Correspondence returns the matching the run is based on.
func (r *Run) Correspondence() *match.Correspondence { return r.corr }

// Reports yields one report per entry with differences or check failures,
// in entry order. The sequence can be consumed once; later iterations yield
// nothing.
func (r *Run) Reports() iter.Seq[changespec.Report] {
	return func(yield func(changespec.Report) bool) {
		if !r.started.CompareAndSwap(false, true) {
			r.logger.Warn("Reports already consumed")
			return
		}
		entries := r.corr.Entries
		if r.jobs < 2 {
			for i, e := range entries {
				if !r.emit(r.hintRename(i, r.dispatcher.Dispatch(r.corr, e)), yield) {
					return
				}
			}
			return
		}

		window := make([]changespec.Report, r.jobs)
		for start := 0; start < len(entries); start += r.jobs {
			chunk := entries[start:min(start+r.jobs, len(entries))]
			var g errgroup.Group
			g.SetLimit(r.jobs)
			for i, e := range chunk {
				g.Go(func() error {
					window[i] = r.dispatcher.Dispatch(r.corr, e)
					return nil
				})
			}
			// Dispatch isolates check failures, so Wait never fails.
			_ = g.Wait()
			for i := range chunk {
				if !r.emit(r.hintRename(start+i, window[i]), yield) {
					return
				}
			}
		}
	}
}

// hintRename attaches the likely counterpart of a renamed member to the
// differences of its report.
func (r *Run) hintRename(index int, report changespec.Report) changespec.Report {
	rn, ok := r.renames[index]
	if !ok || len(report.Differences) == 0 {
		return report
	}
	name, key := changespec.AttachRenamedTo, r.corr.Entries[rn.Added].Key
	if index == rn.Added {
		name, key = changespec.AttachRenamedFrom, r.corr.Entries[rn.Removed].Key
	}
	diffs := slices.Clone(report.Differences)
	for i := range diffs {
		diffs[i].Attachments = append(slices.Clip(diffs[i].Attachments),
			changespec.Attachment{Name: name, Value: key},
			changespec.Attachment{Name: changespec.AttachConfidence, Value: string(rn.Confidence)},
		)
	}
	report.Differences = diffs
	return report
}

func (r *Run) emit(report changespec.Report, yield func(changespec.Report) bool) bool {
	if len(report.Differences) == 0 && len(report.Problems) == 0 {
		return true
	}

	r.mu.Lock()
	r.problems = append(r.problems, report.Problems...)
	r.stats.Problems += len(report.Problems)
	r.stats.Reports++
	r.stats.Differences += len(report.Differences)
	for _, d := range report.Differences {
		r.stats.BySeverity[d.Classification.Max()]++
	}
	r.mu.Unlock()

	return yield(report)
}

// Diagnostics returns the duplicate key errors of the matching followed by
// the check failures seen so far.
func (r *Run) Diagnostics() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, 0, len(r.corr.Diagnostics)+len(r.problems))
	out = append(out, r.corr.Diagnostics...)
	return append(out, r.problems...)
}

// Stats returns a snapshot of the run statistics.
func (r *Run) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.BySeverity = maps.Clone(r.stats.BySeverity)
	return s
}

// MaxSeverity returns the highest severity reported so far.
func (s Stats) MaxSeverity() changespec.Severity {
	max := changespec.SeverityEquivalent
	for sev, n := range s.BySeverity {
		if n > 0 && sev > max {
			max = sev
		}
	}
	return max
}
