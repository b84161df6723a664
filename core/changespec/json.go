package changespec

// Change is the serialized form of a Difference for machine readable output.
type Change struct {
	Code           string                   `json:"code"`
	Name           string                   `json:"name,omitempty"`
	Description    string                   `json:"description,omitempty"`
	Old            string                   `json:"old,omitempty"`
	New            string                   `json:"new,omitempty"`
	Classification map[Compatibility]string `json:"classification"`
	Attachments    []Attachment             `json:"attachments,omitempty"`
}

// ChangeSpec is the serialized form of one Report.
type ChangeSpec struct {
	RunID    string   `json:"run_id,omitempty"`
	Element  string   `json:"element"`
	Old      string   `json:"old,omitempty"`
	New      string   `json:"new,omitempty"`
	Severity string   `json:"severity"`
	Changes  []Change `json:"changes"`
	Problems []string `json:"problems,omitempty"`
}

// Spec converts a report to its serialized form.
func (r Report) Spec(runID string) ChangeSpec {
	spec := ChangeSpec{
		RunID:    runID,
		Element:  r.Path(),
		Severity: r.MaxSeverity().String(),
		Changes:  make([]Change, 0, len(r.Differences)),
	}
	if r.Old != nil && r.OldForest != nil {
		spec.Old = r.OldForest.Path(r.Old).String()
	}
	if r.New != nil && r.NewForest != nil {
		spec.New = r.NewForest.Path(r.New).String()
	}

	for _, d := range r.Differences {
		c := Change{
			Code:           string(d.Code),
			Name:           d.Name,
			Description:    d.Description,
			Classification: make(map[Compatibility]string, len(d.Classification)),
			Attachments:    d.Attachments,
		}
		for axis, sev := range d.Classification {
			c.Classification[axis] = sev.String()
		}
		if d.Old != nil && r.OldForest != nil {
			c.Old = r.OldForest.Path(d.Old).String()
		}
		if d.New != nil && r.NewForest != nil {
			c.New = r.NewForest.Path(d.New).String()
		}
		spec.Changes = append(spec.Changes, c)
	}

	for _, p := range r.Problems {
		spec.Problems = append(spec.Problems, p.Error())
	}
	return spec
}
