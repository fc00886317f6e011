package validation

import (
	"fmt"
	"sort"
)

// Level indicates which validation stage produced the result.
type Level string

const (
	// LevelSchema covers model.yaml before any table is read.
	LevelSchema Level = "schema"
	// LevelData covers input tables: coverage, gaps, unknown keys.
	LevelData Level = "data"
	// LevelSegment covers per-segment faults raised while solving.
	LevelSegment Level = "segment"
)

// Severity indicates how critical a validation result is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Result is a single validation finding.
type Result struct {
	Level       Level    `json:"level"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	SpecPath    string   `json:"spec_path,omitempty"`
	Segment     string   `json:"segment,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	ActualValue any      `json:"actual_value,omitempty"`
	Expected    string   `json:"expected,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Report is the complete validation output of a run.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []Result `json:"errors"`
	Warnings []Result `json:"warnings"`
	Info     []Result `json:"info"`
	Summary  string   `json:"summary"`
}

// NewReport creates an empty valid report.
func NewReport() *Report {
	r := &Report{
		Valid:    true,
		Errors:   []Result{},
		Warnings: []Result{},
		Info:     []Result{},
	}
	r.updateSummary()
	return r
}

// AddError adds an error result and marks the report invalid.
func (r *Report) AddError(result Result) {
	result.Severity = SeverityError
	r.Errors = append(r.Errors, result)
	r.Valid = false
	r.updateSummary()
}

// AddWarning adds a warning result.
func (r *Report) AddWarning(result Result) {
	result.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, result)
	r.updateSummary()
}

// AddInfo adds an informational result.
func (r *Report) AddInfo(result Result) {
	result.Severity = SeverityInfo
	r.Info = append(r.Info, result)
	r.updateSummary()
}

// AddFault records a failed segment as a segment-level error.
func (r *Report) AddFault(segment, stage string, err error) {
	r.AddError(Result{
		Level:   LevelSegment,
		Message: err.Error(),
		Segment: segment,
		Stage:   stage,
	})
}

// Faults returns the segment-level errors ordered by segment.
func (r *Report) Faults() []Result {
	var out []Result
	for _, e := range r.Errors {
		if e.Level == LevelSegment {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Segment < out[j].Segment })
	return out
}

// Merge combines another report into this one.
func (r *Report) Merge(other *Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
	if !other.Valid {
		r.Valid = false
	}
	r.updateSummary()
}

func (r *Report) updateSummary() {
	r.Summary = fmt.Sprintf("%d errors, %d warnings, %d info",
		len(r.Errors), len(r.Warnings), len(r.Info))
}
