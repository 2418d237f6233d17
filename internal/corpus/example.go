// Package corpus owns the persistent example corpus: one baseline snapshot
// plus an ordered list of labeled examples, each bound to a live browser tab
// for the lifetime of the corpus so it can be re-tested during regression.
package corpus

import (
	"fmt"
	"time"

	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// ExampleType labels an example as demonstrating the objective achieved or
// not achieved.
type ExampleType string

const (
	Positive ExampleType = "positive"
	Negative ExampleType = "negative"
)

// Valid reports whether t is one of the two allowed labels.
func (t ExampleType) Valid() bool {
	return t == Positive || t == Negative
}

// ExpectedResult returns the verdict a correct validator must produce for an
// example of this type. The equivalence is an invariant: it is never
// independently settable.
func (t ExampleType) ExpectedResult() bool {
	return t == Positive
}

// Example is a single labeled observation. Examples are immutable after
// creation and removed only by discarding the whole corpus.
type Example struct {
	ID             string          `yaml:"id"`
	Type           ExampleType     `yaml:"type"`
	ExpectedResult bool            `yaml:"expected_result"`
	Tab            gateway.TabRef  `yaml:"tab"`
	CreatedAt      time.Time       `yaml:"created_at"`
	SnapshotFile   string          `yaml:"snapshot"` // relative to the example dir
	SnapshotFormat string          `yaml:"snapshot_format"`
	ChangesFile    string          `yaml:"changes"` // relative to the example dir

	// Loaded payloads, not serialized in metadata.
	Snapshot *snapshot.Snapshot `yaml:"-"`
	Changes  []snapshot.Change  `yaml:"-"`
}

// exampleID formats the sequential id for the k-th example of a type,
// zero-padded to three digits: "positive-001", "negative-007".
func exampleID(t ExampleType, k int) string {
	return fmt.Sprintf("%s-%03d", t, k)
}
