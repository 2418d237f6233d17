package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/oracle"
	"github.com/BrowserOperator/web-agent/internal/regression"
	"github.com/BrowserOperator/web-agent/internal/validator"
)

// DefaultMaxAttempts bounds the oracle repair loop per cycle.
const DefaultMaxAttempts = 3

// Attempt is the audit record for one tested candidate.
type Attempt struct {
	Attempt       int
	Source        string
	Accepted      bool
	FailedExample string
	Reason        string
	At            time.Time
}

// Recorder receives attempt records. Recording is best-effort: a recorder
// must never fail the synthesis cycle.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt)
}

// Params describes one synthesis cycle.
type Params struct {
	Objective string
	TargetURL string

	// CurrentSource is the previously accepted validator, empty on initial
	// synthesis. When set and the cycle was triggered by a new example, the
	// current script is tested against that example first; if it already
	// produces the right verdict there is nothing to repair.
	CurrentSource string

	// NewExample is the example that triggered an extension cycle, nil on
	// initial synthesis. It must already be stored in the corpus.
	NewExample *corpus.Example

	MaxAttempts int
}

func (p Params) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Orchestrator runs synthesis cycles against one corpus.
type Orchestrator struct {
	oracle   oracle.Oracle
	exec     *validator.Executor
	runner   *regression.Runner
	recorder Recorder
}

// NewOrchestrator wires the synthesis loop. recorder may be nil.
func NewOrchestrator(o oracle.Oracle, exec *validator.Executor, runner *regression.Runner, recorder Recorder) *Orchestrator {
	return &Orchestrator{oracle: o, exec: exec, runner: runner, recorder: recorder}
}

// Synthesize runs one cycle and persists an accepted validator through
// persist. Nothing is persisted on any abort; a persistence failure after
// acceptance is fatal and returned as an error. A failed cycle still leaves
// the triggering example in the corpus for the next one.
func (s *Orchestrator) Synthesize(ctx context.Context, store *corpus.Store, p Params, persist func(source string) error) (Outcome, error) {
	maxAttempts := p.maxAttempts()
	logging.Synth("cycle start: examples=%d repairing=%v max_attempts=%d", store.Len(), p.CurrentSource != "", maxAttempts)

	if p.CurrentSource != "" && p.NewExample != nil {
		res, err := s.exec.Test(ctx, p.NewExample.Tab, p.CurrentSource, p.NewExample.ExpectedResult)
		if err != nil {
			return s.transportAbort(err)
		}
		if res.Verdict == validator.Match {
			logging.Synth("current validator already covers %s, accepting unchanged", p.NewExample.ID)
			if err := persist(p.CurrentSource); err != nil {
				return Outcome{}, fmt.Errorf("persist validator: %w", err)
			}
			return Outcome{Kind: Accepted, Validator: p.CurrentSource}, nil
		}
		logging.Synth("current validator fails %s: %s", p.NewExample.ID, res.Reason)
	}

	req := oracle.Request{
		Objective:     p.Objective,
		TargetURL:     p.TargetURL,
		CurrentSource: p.CurrentSource,
		Corpus:        corpusContext(store),
		MaxAttempts:   maxAttempts,
	}
	if p.CurrentSource != "" && p.NewExample != nil {
		req.Failure = &oracle.Failure{
			ExampleID: p.NewExample.ID,
			Expected:  p.NewExample.ExpectedResult,
			Reason:    "previously accepted validator gives the wrong result on this example",
		}
	}

	var lastCandidate, lastReason string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Kind: AbortedTransport, Validator: lastCandidate, Attempts: attempt - 1, Reason: err.Error()}, err
		}

		req.Attempt = attempt
		candidate, err := s.oracle.ProposeOrRepair(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Kind: AbortedTransport, Validator: lastCandidate, Attempts: attempt, Reason: err.Error()}, nil
			}
			// A dry oracle run consumes an attempt like any rejected candidate.
			lastReason = fmt.Sprintf("oracle produced no candidate: %v", err)
			s.record(ctx, Attempt{Attempt: attempt, Reason: lastReason, At: time.Now().UTC()})
			logging.SynthWarn("attempt %d: %s", attempt, lastReason)
			continue
		}
		lastCandidate = candidate
		logging.Synth("attempt %d/%d: testing candidate (%d bytes)", attempt, maxAttempts, len(candidate))

		report, err := s.runner.Run(ctx, store, candidate)
		if err != nil {
			s.record(ctx, Attempt{Attempt: attempt, Source: candidate, Reason: err.Error(), At: time.Now().UTC()})
			return s.transportAbort(err)
		}

		if report.AllPassed {
			if err := persist(candidate); err != nil {
				return Outcome{}, fmt.Errorf("persist validator: %w", err)
			}
			s.record(ctx, Attempt{Attempt: attempt, Source: candidate, Accepted: true, At: time.Now().UTC()})
			logging.Synth("attempt %d accepted", attempt)
			return Outcome{Kind: Accepted, Validator: candidate, Attempts: attempt}, nil
		}

		fail, _ := report.FirstFailure()
		lastReason = fmt.Sprintf("example %s: %s", fail.ExampleID, fail.Reason)
		s.record(ctx, Attempt{
			Attempt:       attempt,
			Source:        candidate,
			FailedExample: fail.ExampleID,
			Reason:        fail.Reason,
			At:            time.Now().UTC(),
		})
		logging.SynthWarn("attempt %d rejected: %s", attempt, lastReason)

		req.CurrentSource = candidate
		req.Failure = &oracle.Failure{
			ExampleID: fail.ExampleID,
			Expected:  fail.Expected,
			Actual:    fail.Actual,
			Reason:    fail.Reason,
		}
	}

	return Outcome{
		Kind:      AbortedExhausted,
		Validator: lastCandidate,
		Attempts:  maxAttempts,
		Reason:    lastReason,
	}, nil
}

func (s *Orchestrator) transportAbort(err error) (Outcome, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gateway.ErrTransport) {
		return Outcome{Kind: AbortedTransport, Reason: err.Error()}, nil
	}
	return Outcome{Kind: AbortedTransport, Reason: err.Error()}, err
}

func (s *Orchestrator) record(ctx context.Context, a Attempt) {
	if s.recorder != nil {
		s.recorder.RecordAttempt(ctx, a)
	}
}

func corpusContext(store *corpus.Store) []oracle.ExampleContext {
	examples := store.Examples()
	out := make([]oracle.ExampleContext, 0, len(examples))
	for _, ex := range examples {
		out = append(out, oracle.ExampleContext{
			ID:       ex.ID,
			Expected: ex.ExpectedResult,
			Tab:      ex.Tab.String(),
			Changes:  ex.Changes,
		})
	}
	return out
}
