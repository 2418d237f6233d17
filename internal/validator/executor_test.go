package validator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// fakeGateway scripts Evaluate responses per tab id.
type fakeGateway struct {
	evaluate func(tab gateway.TabRef, expression string) (gateway.EvalResult, error)
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

func (f *fakeGateway) Evaluate(_ context.Context, tab gateway.TabRef, expression string) (gateway.EvalResult, error) {
	return f.evaluate(tab, expression)
}

func TestExecutorMatch(t *testing.T) {
	gw := &fakeGateway{
		evaluate: func(_ gateway.TabRef, _ string) (gateway.EvalResult, error) {
			return gateway.EvalResult{Value: true}, nil
		},
	}
	res, err := NewExecutor(gw).Test(context.Background(), gateway.TabRef{TabID: "t"}, "!!document", true)
	require.NoError(t, err)
	assert.Equal(t, Match, res.Verdict)
	assert.Equal(t, true, res.Actual)
}

func TestExecutorMismatch(t *testing.T) {
	gw := &fakeGateway{
		evaluate: func(_ gateway.TabRef, _ string) (gateway.EvalResult, error) {
			return gateway.EvalResult{Value: false}, nil
		},
	}
	res, err := NewExecutor(gw).Test(context.Background(), gateway.TabRef{TabID: "t"}, "false", true)
	require.NoError(t, err)
	assert.Equal(t, Mismatch, res.Verdict)
	assert.Contains(t, res.Reason, "expected true")
}

func TestExecutorExceptionIsMismatchNotError(t *testing.T) {
	gw := &fakeGateway{
		evaluate: func(_ gateway.TabRef, _ string) (gateway.EvalResult, error) {
			return gateway.EvalResult{Exception: "ReferenceError: foo is not defined"}, nil
		},
	}
	res, err := NewExecutor(gw).Test(context.Background(), gateway.TabRef{TabID: "t"}, "foo", true)
	require.NoError(t, err)
	assert.Equal(t, Mismatch, res.Verdict)
	assert.Contains(t, res.Reason, "ReferenceError")
}

func TestExecutorTransportFailureIsIndeterminate(t *testing.T) {
	gw := &fakeGateway{
		evaluate: func(_ gateway.TabRef, _ string) (gateway.EvalResult, error) {
			return gateway.EvalResult{}, fmt.Errorf("%w: connection refused", gateway.ErrTransport)
		},
	}
	res, err := NewExecutor(gw).Test(context.Background(), gateway.TabRef{TabID: "t"}, "true", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.Equal(t, Indeterminate, res.Verdict)
}
