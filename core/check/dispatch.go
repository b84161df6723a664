package check

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/match"
)

// EvaluationError isolates the failure of one check on one entry. The
// check's differences for that entry are dropped; every other check and
// entry is still evaluated.
type EvaluationError struct {
	Check string
	Key   string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("check %s failed on %s: %v", e.Check, e.Key, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Dispatcher runs the interested checks of a registry over correspondence
// entries. It holds no mutable state and may be shared between goroutines.
type Dispatcher struct {
	registry   *Registry
	suppressed map[changespec.Code]bool
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSuppressed drops differences with the given codes. Codes may be given
// qualified (java.method.nowStatic) or unqualified (method.nowStatic).
func WithSuppressed(codes ...changespec.Code) DispatcherOption {
	return func(d *Dispatcher) {
		for _, c := range codes {
			d.suppressed[c] = true
		}
	}
}

// WithLogger sets the logger failures are logged to.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:   reg,
		suppressed: map[changespec.Code]bool{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch evaluates an entry and its annotation entries. The differences of
// the annotation entries are attributed to the report of their owner.
func (d *Dispatcher) Dispatch(c *match.Correspondence, entry match.Entry) changespec.Report {
	oldElem, newElem := c.Elements(entry)
	report := changespec.Report{
		Key:       entry.Key,
		Old:       oldElem,
		New:       newElem,
		OldForest: c.Old,
		NewForest: c.New,
	}
	d.run(c, entry, nil, nil, &report)
	for _, ann := range entry.Annotations {
		d.run(c, ann, oldElem, newElem, &report)
	}
	return report
}

func (d *Dispatcher) run(c *match.Correspondence, entry match.Entry, oldOwner, newOwner *forest.Element, report *changespec.Report) {
	oldElem, newElem := c.Elements(entry)
	if oldElem == nil && newElem == nil {
		return
	}
	ctx := &Context{Old: c.Old, New: c.New, Key: entry.Key, OldOwner: oldOwner, NewOwner: newOwner, corr: c}
	ns := string(ctx.Dialect())

	for _, chk := range d.registry.For(entry.Kind) {
		diffs, err := d.visit(ctx, chk, oldElem, newElem)
		if err != nil {
			evalErr := &EvaluationError{Check: chk.Name(), Key: entry.Key, Err: err}
			d.logger.Warn("Check failed", "check", chk.Name(), "key", entry.Key, "error", err)
			report.Problems = append(report.Problems, evalErr)
			continue
		}
		for _, diff := range diffs {
			if d.suppressed[diff.Code] {
				continue
			}
			diff.Code = diff.Code.Qualify(ns)
			if d.suppressed[diff.Code] {
				continue
			}
			report.Differences = append(report.Differences, diff)
		}
	}
}

func (d *Dispatcher) visit(ctx *Context, chk Check, oldElem, newElem *forest.Element) (diffs []changespec.Difference, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("Check panicked", "check", chk.Name(), "stack", string(debug.Stack()))
			diffs, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return chk.Visit(ctx, oldElem, newElem)
}
