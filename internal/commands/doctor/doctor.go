// Package doctor runs setup diagnostics: configuration, the session bridge,
// the stored session and API reachability.
package doctor

import (
	"context"
	"encoding/json"
	"time"
)

// CheckTimeout bounds a single check so one hung dependency cannot stall the run.
const CheckTimeout = 15 * time.Second

// Status represents the result status of a check item.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckItem is a single line within a check result. Hint tells the user
// what to do about a warning or failure.
type CheckItem struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
	Fixed   bool   `json:"fixed,omitempty"`
}

// Result is the outcome of one check.
type Result struct {
	Name    string        `json:"name"`
	Items   []CheckItem   `json:"items"`
	Elapsed time.Duration `json:"-"`
}

// Check defines the interface for a doctor check.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll executes the checks in order. Order matters: a check may start
// something a later check inspects.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
		start := time.Now()
		result := check.Run(checkCtx)
		result.Elapsed = time.Since(start)
		cancel()

		if result.Name == "" {
			result.Name = check.Name()
		}
		results = append(results, result)
	}
	return results
}

// Summary returns counts of passed, warned, and failed items across all results.
func Summary(results []Result) (passed, warned, failed int) {
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				passed++
			case StatusWarn:
				warned++
			case StatusFail:
				failed++
			}
		}
	}
	return
}

// CountFixable returns the number of issues --fix would repair.
func CountFixable(results []Result) int {
	count := 0
	for _, r := range results {
		for _, item := range r.Items {
			if item.Fixable && !item.Fixed && item.Status != StatusPass {
				count++
			}
		}
	}
	return count
}

// Report is the machine-readable form of a doctor run.
type Report struct {
	Healthy bool          `json:"healthy"`
	Summary ReportSummary `json:"summary"`
	Checks  []ReportCheck `json:"checks"`
}

type ReportSummary struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

type ReportCheck struct {
	Result
	ElapsedMS int64 `json:"elapsed_ms"`
}

// NewReport summarizes results. A run is healthy when nothing failed;
// warnings are allowed.
func NewReport(results []Result) Report {
	passed, warned, failed := Summary(results)

	checks := make([]ReportCheck, 0, len(results))
	for _, r := range results {
		checks = append(checks, ReportCheck{Result: r, ElapsedMS: r.Elapsed.Milliseconds()})
	}

	return Report{
		Healthy: failed == 0,
		Summary: ReportSummary{Passed: passed, Warned: warned, Failed: failed, Fixable: CountFixable(results)},
		Checks:  checks,
	}
}
