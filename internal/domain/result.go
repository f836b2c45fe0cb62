package domain

import "time"

// Status is the lifecycle state of a case run. Failed is terminal: the first
// failing step stops the run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// CheckResult records the outcome of a single expectation.
type CheckResult struct {
	Title    string
	Operator string
	Passed   bool
	Detail   string
}

// StepResult records the outcome of a single executed step. Expectation
// results evaluated before the first failure are retained.
type StepResult struct {
	Index  int // 1-based position in the execution graph
	Title  string
	Action string
	Status Status
	Err    error
	Checks []CheckResult
}

// CaseResult is the structured outcome of one case run.
type CaseResult struct {
	RunID    string
	File     string
	Title    string
	Status   Status
	Steps    []StepResult
	Err      error
	Duration time.Duration
}

// Passed reports whether the run completed with every expectation satisfied.
func (r *CaseResult) Passed() bool {
	return r.Status == StatusPassed
}
