package harness

import "github.com/P-wig/cyphersql/internal/querysql"

// StepTrace records what one step produced.
type StepTrace struct {
	Query   string            `json:"query"`
	SQL     string            `json:"sql,omitempty"`
	Params  []querysql.Param  `json:"params,omitempty"`
	Columns []querysql.Column `json:"columns,omitempty"`
	Rows    [][]any           `json:"rows,omitempty"`

	RowsAffected int64 `json:"rows_affected,omitempty"`

	// Error is "Category::Kind" for translation errors, the message for
	// anything else.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per executed step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
