package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

func testSnapshot(markup string) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		SessionRef: "sess-1",
		TabRef:     "tab-1",
		CapturedAt: time.Now().UTC(),
		Format:     "html",
		Data:       []byte(markup),
	}
}

func testTab() gateway.TabRef {
	return gateway.TabRef{SessionRef: "sess-1", TabID: "tab-1"}
}

func TestSaveBaselineIsWriteOnce(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveBaseline(testTab(), testSnapshot("<html></html>")))
	err = s.SaveBaseline(testTab(), testSnapshot("<html>other</html>"))
	assert.ErrorIs(t, err, ErrBaselineExists)

	tab, snap, err := s.BaselineSnapshot()
	require.NoError(t, err)
	assert.Equal(t, testTab(), tab)
	assert.Equal(t, "<html></html>", string(snap.Data))
}

func TestBaselineSnapshotWithoutBaseline(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.BaselineSnapshot()
	assert.ErrorIs(t, err, ErrNoBaseline)
	assert.False(t, s.HasBaseline())
}

func TestAddExampleAssignsSequentialIDs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	changes := []snapshot.Change{{
		Type: snapshot.TextChanged,
		Path: "/html[1]/body[1]/div[1]",
		Details: []snapshot.Detail{
			{Key: "old", Value: "0 items"},
			{Key: "new", Value: "1 item"},
		},
	}}

	p1, err := s.AddExample(Positive, testTab(), testSnapshot("<p>a</p>"), changes)
	require.NoError(t, err)
	n1, err := s.AddExample(Negative, testTab(), testSnapshot("<p>b</p>"), nil)
	require.NoError(t, err)
	p2, err := s.AddExample(Positive, testTab(), testSnapshot("<p>c</p>"), changes)
	require.NoError(t, err)

	assert.Equal(t, "positive-001", p1.ID)
	assert.Equal(t, "negative-001", n1.ID)
	assert.Equal(t, "positive-002", p2.ID)

	assert.True(t, p1.ExpectedResult)
	assert.False(t, n1.ExpectedResult)
}

func TestAddExampleRejectsInvalidType(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.AddExample(ExampleType("maybe"), testTab(), testSnapshot("<p></p>"), nil)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestReopenPreservesInsertionOrder(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, s.SaveBaseline(testTab(), testSnapshot("<html>base</html>")))
	_, err = s.AddExample(Positive, testTab(), testSnapshot("<p>1</p>"), nil)
	require.NoError(t, err)
	_, err = s.AddExample(Negative, testTab(), testSnapshot("<p>2</p>"), nil)
	require.NoError(t, err)
	_, err = s.AddExample(Positive, testTab(), testSnapshot("<p>3</p>"), nil)
	require.NoError(t, err)

	reopened, err := Open(root)
	require.NoError(t, err)
	require.True(t, reopened.HasBaseline())

	var ids []string
	for _, ex := range reopened.Examples() {
		ids = append(ids, ex.ID)
	}
	assert.Equal(t, []string{"positive-001", "negative-001", "positive-002"}, ids)

	// Counters resume from the loaded corpus, never restarting at 001.
	next, err := reopened.AddExample(Positive, testTab(), testSnapshot("<p>4</p>"), nil)
	require.NoError(t, err)
	assert.Equal(t, "positive-003", next.ID)
}

func TestReopenRoundTripsPayloads(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	changes := []snapshot.Change{{
		Type:    snapshot.NodeAdded,
		Path:    "/html[1]/body[1]/ul[1]/li[3]",
		Details: []snapshot.Detail{{Key: "tag", Value: "li"}},
	}}
	_, err = s.AddExample(Positive, testTab(), testSnapshot("<ul><li>x</li></ul>"), changes)
	require.NoError(t, err)

	reopened, err := Open(root)
	require.NoError(t, err)
	exs := reopened.Examples()
	require.Len(t, exs, 1)

	assert.Equal(t, "<ul><li>x</li></ul>", string(exs[0].Snapshot.Data))
	require.Len(t, exs[0].Changes, 1)
	assert.Equal(t, snapshot.NodeAdded, exs[0].Changes[0].Type)
	assert.Equal(t, "li", exs[0].Changes[0].Detail("tag"))
}

func TestOpenRejectsTamperedLabel(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	ex, err := s.AddExample(Negative, testTab(), testSnapshot("<p></p>"), nil)
	require.NoError(t, err)

	// Flip expected_result on disk so it contradicts the type.
	metaPath := filepath.Join(root, ex.ID, "metadata.yaml")
	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "expected_result: false", "expected_result: true", 1)
	require.NoError(t, os.WriteFile(metaPath, []byte(tampered), 0o644))

	_, err = Open(root)
	assert.ErrorContains(t, err, "contradicts")
}

func TestOpenFailsOnMissingExampleDir(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	ex, err := s.AddExample(Positive, testTab(), testSnapshot("<p></p>"), nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, ex.ID)))
	_, err = Open(root)
	assert.Error(t, err)
}
