package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func quickArtifactOracle(dir string) *ArtifactOracle {
	o := NewArtifactOracle(dir, 5*time.Second)
	o.debounce = 10 * time.Millisecond
	o.pollEvery = 25 * time.Millisecond
	return o
}

func TestArtifactOraclePicksUpScript(t *testing.T) {
	dir := t.TempDir()
	o := quickArtifactOracle(dir)

	go func() {
		// Simulates the external agent reading the request and saving a script.
		for i := 0; i < 100; i++ {
			if _, err := os.Stat(o.RequestPath()); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		_ = os.WriteFile(o.ArtifactPath(), []byte("document.title === 'Done'\n"), 0o644)
	}()

	script, err := o.ProposeOrRepair(context.Background(), Request{Objective: "check title"})
	require.NoError(t, err)
	assert.Equal(t, "document.title === 'Done'", script)

	doc, err := os.ReadFile(o.RequestPath())
	require.NoError(t, err)
	assert.Contains(t, string(doc), "check title")
}

func TestArtifactOracleIgnoresStaleContent(t *testing.T) {
	dir := t.TempDir()
	o := quickArtifactOracle(dir)
	o.lastContent = "old()"

	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFileName), []byte("old()"), 0o644))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, ArtifactFileName), []byte("fresh()"), 0o644)
	}()

	script, err := o.ProposeOrRepair(context.Background(), Request{Objective: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fresh()", script)
}

func TestArtifactOracleContextCancel(t *testing.T) {
	o := quickArtifactOracle(t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := o.ProposeOrRepair(ctx, Request{Objective: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
