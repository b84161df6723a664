package report

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"github.com/emenda-labs/apidelta/core/changespec"
)

// JSON writes one JSON object per line: a changespec.ChangeSpec per report,
// then one object per diagnostic and a final summary. Every line carries the
// run id.
type JSON struct {
	enc   *json.Encoder
	opts  Options
	runID string
}

var _ Reporter = (*JSON)(nil)

// NewJSON creates a JSON lines reporter.
func NewJSON(w io.Writer, opts Options) *JSON {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &JSON{enc: json.NewEncoder(w), opts: opts, runID: runID}
}

// RunID returns the id stamped on every line.
func (j *JSON) RunID() string { return j.runID }

func (j *JSON) Report(r changespec.Report) error {
	r.Differences = visible(r, j.opts.Threshold)
	if len(r.Differences) == 0 && len(r.Problems) == 0 {
		return nil
	}
	return j.enc.Encode(r.Spec(j.runID))
}

type diagnosticLine struct {
	RunID      string `json:"run_id"`
	Diagnostic string `json:"diagnostic"`
}

func (j *JSON) Diagnostic(err error) error {
	return j.enc.Encode(diagnosticLine{RunID: j.runID, Diagnostic: err.Error()})
}

type summaryLine struct {
	RunID   string      `json:"run_id"`
	Summary summaryBody `json:"summary"`
}

type summaryBody struct {
	Old         string         `json:"old"`
	New         string         `json:"new"`
	Entries     int            `json:"entries"`
	Reports     int            `json:"reports"`
	Differences int            `json:"differences"`
	Problems    int            `json:"problems"`
	BySeverity  map[string]int `json:"by_severity"`
	Max         string         `json:"max_severity"`
}

func (j *JSON) Finish(s Summary) error {
	body := summaryBody{
		Old:         s.Old,
		New:         s.New,
		Entries:     s.Entries,
		Reports:     s.Reports,
		Differences: s.Differences,
		Problems:    s.Problems,
		BySeverity:  make(map[string]int, len(s.BySeverity)),
		Max:         s.Max.String(),
	}
	for sev, n := range s.BySeverity {
		body.BySeverity[sev.String()] = n
	}
	return j.enc.Encode(summaryLine{RunID: j.runID, Summary: body})
}
