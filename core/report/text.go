package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/emenda-labs/apidelta/core/changespec"
)

// Text renders reports for humans.
type Text struct {
	w    io.Writer
	opts Options

	heading  *color.Color
	severity map[changespec.Severity]*color.Color
	warning  *color.Color
	removed  *color.Color
	added    *color.Color
}

var _ Reporter = (*Text)(nil)

// NewText creates a text reporter.
func NewText(w io.Writer, opts Options) *Text {
	t := &Text{
		w:       w,
		opts:    opts,
		heading: color.New(color.Bold),
		severity: map[changespec.Severity]*color.Color{
			changespec.SeverityEquivalent:          color.New(color.Faint),
			changespec.SeverityNonBreaking:         color.New(color.FgGreen),
			changespec.SeverityPotentiallyBreaking: color.New(color.FgYellow),
			changespec.SeverityBreaking:            color.New(color.FgRed, color.Bold),
		},
		warning: color.New(color.FgYellow),
		removed: color.New(color.FgRed),
		added:   color.New(color.FgGreen),
	}
	for _, c := range t.colors() {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

func (t *Text) colors() []*color.Color {
	out := []*color.Color{t.heading, t.warning, t.removed, t.added}
	for _, c := range t.severity {
		out = append(out, c)
	}
	return out
}

func (t *Text) Report(r changespec.Report) error {
	diffs := visible(r, t.opts.Threshold)
	if len(diffs) == 0 && len(r.Problems) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(t.heading.Sprint(r.Path()))
	sb.WriteByte('\n')
	for _, d := range diffs {
		sev := d.Classification.Max()
		label := fmt.Sprintf("%-20s", strings.ToUpper(sev.String()))
		fmt.Fprintf(&sb, "  %s %s", t.severity[sev].Sprint(label), d.Code)
		if d.Description != "" {
			fmt.Fprintf(&sb, ": %s", d.Description)
		}
		sb.WriteByte('\n')
		if to, ok := d.Attachment(changespec.AttachRenamedTo); ok {
			conf, _ := d.Attachment(changespec.AttachConfidence)
			fmt.Fprintf(&sb, "      possibly renamed to %s (%s confidence)\n", to, conf)
		} else if from, ok := d.Attachment(changespec.AttachRenamedFrom); ok {
			conf, _ := d.Attachment(changespec.AttachConfidence)
			fmt.Fprintf(&sb, "      possibly renamed from %s (%s confidence)\n", from, conf)
		}
		t.writeValueDiff(&sb, d)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(&sb, "  %s %v\n", t.warning.Sprint("problem"), p)
	}
	_, err := io.WriteString(t.w, sb.String())
	return err
}

// writeValueDiff renders old and new values as a unified diff when the
// difference carries both.
func (t *Text) writeValueDiff(sb *strings.Builder, d changespec.Difference) {
	oldV, okOld := d.Attachment(changespec.AttachOldValue)
	newV, okNew := d.Attachment(changespec.AttachNewValue)
	if !okOld || !okNew || oldV == newV {
		return
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldV + "\n"),
		B:        difflib.SplitLines(newV + "\n"),
		FromFile: "old",
		ToFile:   "new",
		Context:  1,
	})
	if err != nil || out == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			line = t.removed.Sprint(line)
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			line = t.added.Sprint(line)
		}
		sb.WriteString("      ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

func (t *Text) Diagnostic(err error) error {
	_, werr := fmt.Fprintf(t.w, "%s %v\n", t.warning.Sprint("warning:"), err)
	return werr
}

func (t *Text) Finish(s Summary) error {
	var parts []string
	for sev := changespec.SeverityBreaking; sev >= changespec.SeverityEquivalent; sev-- {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, t.severity[sev].Sprintf("%s: %d", sev, n))
		}
	}
	line := fmt.Sprintf("%s → %s: %d differences in %d elements", s.Old, s.New, s.Differences, s.Reports)
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	if s.Problems > 0 {
		line += fmt.Sprintf("; %d problems", s.Problems)
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}
