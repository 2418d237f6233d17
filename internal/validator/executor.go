package validator

import (
	"context"
	"fmt"

	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/logging"
)

// Verdict is the outcome of testing a validator against one example.
type Verdict int

const (
	// Match means the script evaluated cleanly and its result compared
	// equal to the expected one.
	Match Verdict = iota
	// Mismatch means the script evaluated but its result differed, or the
	// script threw. A throwing validator is wrong, not broken infrastructure.
	Mismatch
	// Indeterminate means the backend could not be reached or timed out.
	// No judgement about the validator is possible.
	Indeterminate
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Result carries the verdict for one evaluation plus diagnostics for the
// repair loop.
type Result struct {
	Verdict Verdict
	Actual  any    // observed value when the script evaluated cleanly
	Reason  string // human-readable explanation for non-match verdicts
}

// Executor tests validator scripts in live tabs through the gateway.
type Executor struct {
	gw gateway.Gateway
}

// NewExecutor returns an executor backed by gw.
func NewExecutor(gw gateway.Gateway) *Executor {
	return &Executor{gw: gw}
}

// Test evaluates source in the example's tab and compares the result against
// expected. Script exceptions produce a Mismatch verdict; only transport
// failures produce Indeterminate, and those also return the underlying error
// so callers can abort rather than misjudge the script.
func (e *Executor) Test(ctx context.Context, tab gateway.TabRef, source string, expected any) (Result, error) {
	res, err := e.gw.Evaluate(ctx, tab, source)
	if err != nil {
		logging.SynthWarn("evaluation on %s failed: %v", tab, err)
		return Result{
			Verdict: Indeterminate,
			Reason:  fmt.Sprintf("backend unavailable: %v", err),
		}, err
	}

	if res.Threw() {
		return Result{
			Verdict: Mismatch,
			Reason:  fmt.Sprintf("script exception: %s", res.Exception),
		}, nil
	}

	if Compare(expected, res.Value) {
		return Result{Verdict: Match, Actual: res.Value}, nil
	}
	return Result{
		Verdict: Mismatch,
		Actual:  res.Value,
		Reason:  fmt.Sprintf("expected %v, got %v", expected, res.Value),
	}, nil
}
