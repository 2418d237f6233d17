// Package regression runs a candidate validator across the whole example
// corpus and reports whether it reproduces every recorded label.
package regression

import (
	"context"
	"fmt"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/validator"
)

// Result records one example's outcome within a run.
type Result struct {
	ExampleID string
	Expected  bool
	Actual    any
	Passed    bool
	Reason    string
}

// Report is the outcome of running a candidate over the full corpus.
// AllPassed is true for an empty corpus: with nothing recorded there is
// nothing to regress.
type Report struct {
	AllPassed bool
	Results   []Result
}

// FirstFailure returns the first failing result in corpus order.
func (r Report) FirstFailure() (Result, bool) {
	for _, res := range r.Results {
		if !res.Passed {
			return res, true
		}
	}
	return Result{}, false
}

// Runner drives full-corpus regression tests. Runs are strictly sequential
// in corpus insertion order so repeated runs of the same candidate against
// the same corpus visit examples identically.
type Runner struct {
	exec *validator.Executor
}

// NewRunner returns a runner that tests through exec.
func NewRunner(exec *validator.Executor) *Runner {
	return &Runner{exec: exec}
}

// Run tests source against every example in the store. The store is never
// mutated. A transport failure aborts the run with the partial report and an
// error; script exceptions and mismatches are recorded and the run continues.
func (r *Runner) Run(ctx context.Context, store *corpus.Store, source string) (Report, error) {
	examples := store.Examples()
	report := Report{AllPassed: true}

	for _, ex := range examples {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := r.exec.Test(ctx, ex.Tab, source, ex.ExpectedResult)
		if err != nil {
			report.AllPassed = false
			report.Results = append(report.Results, Result{
				ExampleID: ex.ID,
				Expected:  ex.ExpectedResult,
				Passed:    false,
				Reason:    res.Reason,
			})
			return report, fmt.Errorf("example %s: %w", ex.ID, err)
		}

		passed := res.Verdict == validator.Match
		if !passed {
			report.AllPassed = false
		}
		report.Results = append(report.Results, Result{
			ExampleID: ex.ID,
			Expected:  ex.ExpectedResult,
			Actual:    res.Actual,
			Passed:    passed,
			Reason:    res.Reason,
		})
		logging.Synth("regression %s: expected=%v verdict=%s", ex.ID, ex.ExpectedResult, res.Verdict)
	}

	return report, nil
}
