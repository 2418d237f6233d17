package synth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/oracle"
	"github.com/BrowserOperator/web-agent/internal/regression"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
	"github.com/BrowserOperator/web-agent/internal/validator"
)

// fakeGateway resolves evaluations from a table keyed by script then tab id.
type fakeGateway struct {
	results map[string]map[string]gateway.EvalResult
	errs    map[string]error // by tab id, any script
}

func (f *fakeGateway) OpenTab(context.Context, string) (gateway.TabRef, error) {
	return gateway.TabRef{}, fmt.Errorf("not implemented")
}

func (f *fakeGateway) CaptureSnapshot(context.Context, gateway.TabRef, gateway.SnapshotOptions) (*snapshot.Snapshot, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeGateway) CaptureMarkup(context.Context, gateway.TabRef) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeGateway) Evaluate(_ context.Context, tab gateway.TabRef, script string) (gateway.EvalResult, error) {
	if err, ok := f.errs[tab.TabID]; ok {
		return gateway.EvalResult{}, err
	}
	byTab, ok := f.results[script]
	if !ok {
		return gateway.EvalResult{Exception: "ReferenceError: unscripted evaluation"}, nil
	}
	return byTab[tab.TabID], nil
}

// scriptedOracle returns canned candidates in order.
type scriptedOracle struct {
	candidates []string
	err        error
	calls      int
	requests   []oracle.Request
}

func (o *scriptedOracle) ProposeOrRepair(_ context.Context, req oracle.Request) (string, error) {
	o.requests = append(o.requests, req)
	if o.err != nil {
		return "", o.err
	}
	if o.calls >= len(o.candidates) {
		return "", fmt.Errorf("oracle exhausted after %d calls", o.calls)
	}
	c := o.candidates[o.calls]
	o.calls++
	return c, nil
}

// memoryRecorder captures attempt records.
type memoryRecorder struct {
	attempts []Attempt
}

func (r *memoryRecorder) RecordAttempt(_ context.Context, a Attempt) {
	r.attempts = append(r.attempts, a)
}

func addExample(t *testing.T, s *corpus.Store, typ corpus.ExampleType, tabID string) *corpus.Example {
	t.Helper()
	snap := &snapshot.Snapshot{
		CapturedAt: time.Now(),
		Format:     "html",
		Data:       []byte("<html></html>"),
	}
	ex, err := s.AddExample(typ, gateway.TabRef{SessionRef: "s", TabID: tabID}, snap, nil)
	require.NoError(t, err)
	return ex
}

func newOrchestrator(gw gateway.Gateway, o oracle.Oracle, rec Recorder) *Orchestrator {
	exec := validator.NewExecutor(gw)
	return NewOrchestrator(o, exec, regression.NewRunner(exec), rec)
}

type persisted struct {
	source string
	calls  int
}

func (p *persisted) persist(source string) error {
	p.source = source
	p.calls++
	return nil
}

func TestCurrentValidatorCoversNewExample(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-old")
	newEx := addExample(t, s, corpus.Negative, "tab-new")

	gw := &fakeGateway{results: map[string]map[string]gateway.EvalResult{
		"current()": {"tab-old": {Value: true}, "tab-new": {Value: false}},
	}}
	orc := &scriptedOracle{}
	var sink persisted

	out, err := newOrchestrator(gw, orc, nil).Synthesize(context.Background(), s, Params{
		Objective:     "obj",
		CurrentSource: "current()",
		NewExample:    newEx,
	}, sink.persist)
	require.NoError(t, err)

	assert.True(t, out.Ok())
	assert.Equal(t, "current()", out.Validator)
	assert.Equal(t, 0, orc.calls, "oracle must not be consulted when nothing broke")
	assert.Equal(t, 1, sink.calls)
}

func TestRepairAcceptedAfterRegression(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-1")
	newEx := addExample(t, s, corpus.Negative, "tab-2")

	gw := &fakeGateway{results: map[string]map[string]gateway.EvalResult{
		// Current validator wrongly fires on the new negative example.
		"current()": {"tab-1": {Value: true}, "tab-2": {Value: true}},
		"fixed()":   {"tab-1": {Value: true}, "tab-2": {Value: false}},
	}}
	orc := &scriptedOracle{candidates: []string{"fixed()"}}
	rec := &memoryRecorder{}
	var sink persisted

	out, err := newOrchestrator(gw, orc, rec).Synthesize(context.Background(), s, Params{
		Objective:     "obj",
		CurrentSource: "current()",
		NewExample:    newEx,
	}, sink.persist)
	require.NoError(t, err)

	assert.True(t, out.Ok())
	assert.Equal(t, "fixed()", out.Validator)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "fixed()", sink.source)

	// The repair request carried the failing example and the old source.
	require.Len(t, orc.requests, 1)
	assert.Equal(t, "current()", orc.requests[0].CurrentSource)
	require.NotNil(t, orc.requests[0].Failure)
	assert.Equal(t, newEx.ID, orc.requests[0].Failure.ExampleID)

	require.Len(t, rec.attempts, 1)
	assert.True(t, rec.attempts[0].Accepted)
}

func TestExhaustedAfterMaxAttempts(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-1")
	addExample(t, s, corpus.Negative, "tab-2")

	// Every candidate keeps failing the negative example.
	gw := &fakeGateway{results: map[string]map[string]gateway.EvalResult{
		"c1()": {"tab-1": {Value: true}, "tab-2": {Value: true}},
		"c2()": {"tab-1": {Value: true}, "tab-2": {Value: true}},
		"c3()": {"tab-1": {Value: true}, "tab-2": {Value: true}},
	}}
	orc := &scriptedOracle{candidates: []string{"c1()", "c2()", "c3()"}}
	rec := &memoryRecorder{}
	var sink persisted

	out, err := newOrchestrator(gw, orc, rec).Synthesize(context.Background(), s, Params{
		Objective: "obj",
	}, sink.persist)
	require.NoError(t, err)

	assert.Equal(t, AbortedExhausted, out.Kind)
	assert.Equal(t, "c3()", out.Validator)
	assert.Equal(t, 3, out.Attempts)
	assert.Contains(t, out.Reason, "negative-001")
	assert.Equal(t, 0, sink.calls, "nothing may be persisted on abort")
	assert.Len(t, rec.attempts, 3)

	// The triggering examples stay in the corpus for the next cycle.
	assert.Equal(t, 2, s.Len())
}

func TestTransportFailureAborts(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-1")

	gw := &fakeGateway{
		errs: map[string]error{"tab-1": fmt.Errorf("%w: connection refused", gateway.ErrTransport)},
	}
	orc := &scriptedOracle{candidates: []string{"c1()"}}
	var sink persisted

	out, err := newOrchestrator(gw, orc, nil).Synthesize(context.Background(), s, Params{
		Objective: "obj",
	}, sink.persist)
	require.NoError(t, err)

	assert.Equal(t, AbortedTransport, out.Kind)
	assert.Contains(t, out.Reason, "connection refused")
	assert.Equal(t, 0, sink.calls)
}

func TestOracleFailuresConsumeAttempts(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-1")

	orc := &scriptedOracle{err: fmt.Errorf("oracle unavailable")}
	rec := &memoryRecorder{}
	var sink persisted

	out, err := newOrchestrator(&fakeGateway{}, orc, rec).Synthesize(context.Background(), s, Params{
		Objective: "obj",
	}, sink.persist)
	require.NoError(t, err)

	// A dry oracle run costs an attempt; the bound still holds.
	assert.Len(t, orc.requests, 3)
	assert.Equal(t, AbortedExhausted, out.Kind)
	assert.Empty(t, out.Validator)
	assert.Contains(t, out.Reason, "oracle unavailable")
	assert.Equal(t, 0, sink.calls)
	assert.Len(t, rec.attempts, 3)
}

func TestPersistFailureIsFatal(t *testing.T) {
	s, err := corpus.Open(t.TempDir())
	require.NoError(t, err)
	addExample(t, s, corpus.Positive, "tab-1")

	gw := &fakeGateway{results: map[string]map[string]gateway.EvalResult{
		"c1()": {"tab-1": {Value: true}},
	}}
	orc := &scriptedOracle{candidates: []string{"c1()"}}

	_, err = newOrchestrator(gw, orc, nil).Synthesize(context.Background(), s, Params{
		Objective: "obj",
	}, func(string) error { return fmt.Errorf("disk full") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
