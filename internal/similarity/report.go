package similarity

import "encoding/json"

// Report is the persisted plagiarism report for one submission. The JSON
// shape is stable; contract tests pin it against a schema.
type Report struct {
	Cases   []Comparison `json:"cases"`
	Summary Summary      `json:"summary"`
}

// BuildReport folds a batch of comparisons into the persisted report.
func BuildReport(comparisons []Comparison, summary Summary) Report {
	if comparisons == nil {
		comparisons = []Comparison{}
	}
	return Report{Cases: comparisons, Summary: summary}
}

// Marshal renders the report to its stored JSON form.
func (r Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
