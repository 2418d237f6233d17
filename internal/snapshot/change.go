// Package snapshot defines the structural page-state types shared by the
// eval builder: opaque snapshots, the typed change taxonomy, and the
// classifier contract that reduces two snapshots to a list of changes.
package snapshot

import (
	"fmt"
	"strings"
	"time"
)

// ChangeType is the closed taxonomy of structural deltas a classifier may emit.
type ChangeType string

const (
	NodeAdded             ChangeType = "node_added"
	NodeRemoved           ChangeType = "node_removed"
	TextChanged           ChangeType = "text_changed"
	AttrAdded             ChangeType = "attr_added"
	AttrRemoved           ChangeType = "attr_removed"
	AttrModified          ChangeType = "attr_modified"
	FormValueChanged      ChangeType = "form_value_changed"
	CheckboxStateChanged  ChangeType = "checkbox_state_changed"
	OptionSelectedChanged ChangeType = "option_selected_changed"
	PositionChanged       ChangeType = "position_changed"
	StyleChanged          ChangeType = "style_changed"
)

// Detail is one key/value pair of type-specific change data.
// Details keep their emission order, which is part of the classifier contract.
type Detail struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Change is a single observed structural delta between two snapshots.
// Changes are immutable once produced.
type Change struct {
	Type    ChangeType `yaml:"type" json:"type"`
	Path    string     `yaml:"path" json:"path"`
	Details []Detail   `yaml:"details,omitempty" json:"details,omitempty"`
}

// Detail returns the value for key, or "" when absent.
func (c Change) Detail(key string) string {
	for _, d := range c.Details {
		if d.Key == key {
			return d.Value
		}
	}
	return ""
}

// String renders a one-line summary suitable for logs and oracle requests.
func (c Change) String() string {
	if len(c.Details) == 0 {
		return fmt.Sprintf("%s %s", c.Type, c.Path)
	}
	parts := make([]string, 0, len(c.Details))
	for _, d := range c.Details {
		parts = append(parts, fmt.Sprintf("%s=%q", d.Key, d.Value))
	}
	return fmt.Sprintf("%s %s (%s)", c.Type, c.Path, strings.Join(parts, ", "))
}

// Summarize renders a change list as a newline-separated digest, capped at
// limit entries. The oracle request builder uses this; limit <= 0 means all.
func Summarize(changes []Change, limit int) string {
	if limit <= 0 || limit > len(changes) {
		limit = len(changes)
	}
	var b strings.Builder
	for i := 0; i < limit; i++ {
		b.WriteString("- ")
		b.WriteString(changes[i].String())
		b.WriteString("\n")
	}
	if limit < len(changes) {
		fmt.Fprintf(&b, "- ... and %d more\n", len(changes)-limit)
	}
	return b.String()
}

// Snapshot is an opaque structured capture of a page's DOM at one instant,
// tied to one (session, tab). The core persists it verbatim and passes it
// whole to the classifier; only the classifier interprets Data.
type Snapshot struct {
	SessionRef string    `json:"session_ref"`
	TabRef     string    `json:"tab_ref"`
	CapturedAt time.Time `json:"captured_at"`
	Format     string    `json:"format"` // "html" for markup captures
	Data       []byte    `json:"data"`
}

// Classifier reduces two snapshots to an ordered list of typed changes.
// Implementations must be deterministic for a given snapshot pair and filter
// configuration, and must never fail: malformed input yields an empty list.
type Classifier interface {
	Classify(before, after *Snapshot) []Change
}
