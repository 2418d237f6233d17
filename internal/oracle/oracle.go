// Package oracle abstracts the code-generation backend that proposes and
// repairs validator scripts. The synthesis loop treats it as a black box:
// a request with full corpus context goes in, candidate script text comes
// out. Quality control stays on the caller's side.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// RateLimitError indicates the backend returned a rate limit response.
// Callers can use errors.As to detect it and back off.
type RateLimitError struct {
	Provider    string
	RetryAfter  time.Duration
	RawResponse string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}

// ExampleContext is what the oracle gets to see about one labeled example.
// Tab names the live tab the script will be tested against.
type ExampleContext struct {
	ID       string
	Expected bool
	Tab      string
	Changes  []snapshot.Change
}

// Failure describes why the current candidate was rejected, when repairing.
type Failure struct {
	ExampleID string
	Expected  bool
	Actual    any
	Reason    string
}

// Request carries everything the oracle needs to propose a new validator or
// repair the current one. CurrentSource is empty for initial synthesis.
type Request struct {
	Objective     string
	TargetURL     string
	CurrentSource string
	Failure       *Failure
	Corpus        []ExampleContext
	Attempt       int
	MaxAttempts   int
}

// Repairing reports whether the request is a repair of an existing candidate
// rather than initial synthesis.
func (r Request) Repairing() bool { return r.CurrentSource != "" }

// Oracle produces candidate validator scripts. Implementations must return
// a single evaluable expression body (no return statements) or an error;
// they never judge their own output.
type Oracle interface {
	ProposeOrRepair(ctx context.Context, req Request) (string, error)
}
