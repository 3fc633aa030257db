package harness

import "github.com/roach88/zkabi/internal/abi"

// CaseResult records what one case encoded to, or the error it failed
// with as expected.
type CaseResult struct {
	Name   string
	Source string
	Type   *abi.Type

	Tape []abi.Limb
	Text string
	JSON string

	// MemoryWords is the number of words the value occupies when laid out.
	MemoryWords int

	ErrorCode string
	ErrorPath string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every case met its expectations.
	Pass bool

	Cases []CaseResult

	// Errors contains one message per failed expectation.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
