// Package gateway is the narrow capability interface to the browser
// automation backend. The synthesis core never creates or destroys browser
// resources directly; it requests snapshots and expression evaluation
// against externally-owned tab handles.
//
// Two implementations are provided: RodGateway drives a Chrome instance over
// CDP, HTTPGateway speaks to a running BrowserOperator server.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// ErrTransport marks network or process-level failures talking to the
// backend. Callers must treat these as indeterminate, never as a verdict.
var ErrTransport = errors.New("gateway transport failure")

// ErrUnknownTab is returned when a tab reference is not bound to a live page.
var ErrUnknownTab = errors.New("unknown tab reference")

// TabRef identifies one externally-owned browser tab. Tabs stay bound for
// the lifetime of a corpus so examples can be replayed during regression.
type TabRef struct {
	SessionRef string `yaml:"session_ref" json:"session_ref"`
	TabID      string `yaml:"tab_id" json:"tab_id"`
}

func (t TabRef) String() string {
	return fmt.Sprintf("%s/%s", t.SessionRef, t.TabID)
}

// IsZero reports whether the reference is unset.
func (t TabRef) IsZero() bool {
	return t.SessionRef == "" && t.TabID == ""
}

// EvalResult is the outcome of evaluating an expression in a page context.
// Exactly one of Value/Exception is meaningful: a non-empty Exception means
// the script threw (or used a disallowed return statement).
type EvalResult struct {
	Value     any
	Exception string
}

// Threw reports whether the evaluation raised an exception.
func (r EvalResult) Threw() bool { return r.Exception != "" }

// SnapshotOptions mirrors the snapshot endpoint request.
type SnapshotOptions struct {
	ComputedStyles []string
	IncludeRects   bool
}

// Gateway is the Snapshot/Execution Gateway contract (consumed, not owned).
type Gateway interface {
	// OpenTab opens a new tab at url and returns its long-lived reference.
	OpenTab(ctx context.Context, url string) (TabRef, error)

	// CaptureSnapshot captures the structural page state of a tab.
	CaptureSnapshot(ctx context.Context, tab TabRef, opts SnapshotOptions) (*snapshot.Snapshot, error)

	// CaptureMarkup returns the tab's raw serialized markup for audit.
	CaptureMarkup(ctx context.Context, tab TabRef) (string, error)

	// Evaluate runs a single evaluable expression in the tab's page context
	// and returns its value by value. Script exceptions are reported in the
	// result, not as an error; errors are reserved for transport failures.
	Evaluate(ctx context.Context, tab TabRef, expression string) (EvalResult, error)
}
