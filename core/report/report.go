// Package report renders analysis results.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/emenda-labs/apidelta/core/changespec"
)

// Summary closes a stream of reports.
type Summary struct {
	Old         string
	New         string
	Entries     int
	Reports     int
	Differences int
	Problems    int
	BySeverity  map[changespec.Severity]int
	Max         changespec.Severity
}

// Reporter receives the reports of one run in order, then its diagnostics,
// then the summary.
type Reporter interface {
	Report(r changespec.Report) error
	Diagnostic(err error) error
	Finish(s Summary) error
}

// Options configures the built-in reporters.
type Options struct {
	// Color enables ANSI colors in text output.
	Color bool
	// Threshold hides differences whose highest severity is below it.
	Threshold changespec.Severity
	// RunID stamps machine readable output. Generated when empty.
	RunID string
}

// Formats lists the names accepted by New.
var Formats = []string{"text", "json"}

// New creates a reporter writing the named format to w.
func New(format string, w io.Writer, opts Options) (Reporter, error) {
	switch format {
	case "", "text":
		return NewText(w, opts), nil
	case "json":
		return NewJSON(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want one of %v)", format, Formats)
	}
}

// visible filters the differences of r below threshold.
func visible(r changespec.Report, threshold changespec.Severity) []changespec.Difference {
	if threshold == changespec.SeverityEquivalent {
		return r.Differences
	}
	var out []changespec.Difference
	for _, d := range r.Differences {
		if d.Classification.Max() >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Multi fans out to several reporters. Every reporter sees every call; the
// errors are joined.
type Multi []Reporter

var _ Reporter = Multi(nil)

func (m Multi) Report(r changespec.Report) error {
	var errs []error
	for _, rep := range m {
		errs = append(errs, rep.Report(r))
	}
	return errors.Join(errs...)
}

func (m Multi) Diagnostic(err error) error {
	var errs []error
	for _, rep := range m {
		errs = append(errs, rep.Diagnostic(err))
	}
	return errors.Join(errs...)
}

func (m Multi) Finish(s Summary) error {
	var errs []error
	for _, rep := range m {
		errs = append(errs, rep.Finish(s))
	}
	return errors.Join(errs...)
}

// Collector keeps everything it receives, for tests and for callers that
// post-process results.
type Collector struct {
	Reports     []changespec.Report
	Diagnostics []error
	Summary     *Summary
}

var _ Reporter = (*Collector)(nil)

func (c *Collector) Report(r changespec.Report) error {
	c.Reports = append(c.Reports, r)
	return nil
}

func (c *Collector) Diagnostic(err error) error {
	c.Diagnostics = append(c.Diagnostics, err)
	return nil
}

func (c *Collector) Finish(s Summary) error {
	c.Summary = &s
	return nil
}

// Codes returns the codes of all collected differences in order.
func (c *Collector) Codes() []changespec.Code {
	var out []changespec.Code
	for _, r := range c.Reports {
		for _, d := range r.Differences {
			out = append(out, d.Code)
		}
	}
	return out
}
