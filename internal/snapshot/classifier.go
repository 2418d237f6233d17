package snapshot

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DOMClassifier is the reference Classifier implementation. It parses two
// HTML snapshots and reports the typed deltas between them, matching nodes
// by structural path (tag plus position among same-tag siblings).
//
// It exists so the builder is usable without an external diff service; any
// classifier honoring the Classifier contract can replace it.
type DOMClassifier struct {
	filter FilterConfig
}

// NewDOMClassifier creates a classifier with the given filter.
func NewDOMClassifier(filter FilterConfig) *DOMClassifier {
	return &DOMClassifier{filter: filter}
}

// domNode is one element flattened out of a parsed snapshot.
type domNode struct {
	path  string
	tag   string
	attrs []html.Attribute
	text  string
}

func (n *domNode) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Classify reduces two snapshots to an ordered change list. Nil or
// unparseable input yields an empty list, never an error: the classifier
// contract forbids failing.
func (c *DOMClassifier) Classify(before, after *Snapshot) []Change {
	beforeNodes := flatten(before)
	afterNodes := flatten(after)
	if beforeNodes == nil && afterNodes == nil {
		return nil
	}

	beforeIdx := make(map[string]*domNode, len(beforeNodes))
	for _, n := range beforeNodes {
		beforeIdx[n.path] = n
	}
	afterIdx := make(map[string]*domNode, len(afterNodes))
	for _, n := range afterNodes {
		afterIdx[n.path] = n
	}

	var changes []Change

	// Document order over the after tree: additions and modifications.
	for _, a := range afterNodes {
		b, ok := beforeIdx[a.path]
		if !ok {
			details := []Detail{{Key: "tag", Value: a.tag}}
			if a.text != "" {
				details = append(details, Detail{Key: "text", Value: a.text})
			}
			changes = append(changes, Change{Type: NodeAdded, Path: a.path, Details: details})
			continue
		}
		changes = append(changes, c.compareNode(b, a)...)
	}

	// Document order over the before tree: removals.
	for _, b := range beforeNodes {
		if _, ok := afterIdx[b.path]; !ok {
			changes = append(changes, Change{
				Type:    NodeRemoved,
				Path:    b.path,
				Details: []Detail{{Key: "tag", Value: b.tag}},
			})
		}
	}

	return changes
}

// compareNode diffs one matched node pair.
func (c *DOMClassifier) compareNode(b, a *domNode) []Change {
	var changes []Change

	if b.text != a.text {
		changes = append(changes, Change{
			Type: TextChanged,
			Path: a.path,
			Details: []Detail{
				{Key: "old", Value: b.text},
				{Key: "new", Value: a.text},
			},
		})
	}

	for _, attr := range a.attrs {
		if c.filter.ignoreAttr(attr.Key) {
			continue
		}
		oldVal, had := b.attr(attr.Key)
		if !had {
			changes = append(changes, Change{
				Type: attrChangeType(a.tag, attr.Key, AttrAdded),
				Path: a.path,
				Details: []Detail{
					{Key: "attr", Value: attr.Key},
					{Key: "new", Value: attr.Val},
				},
			})
			continue
		}
		if oldVal == attr.Val || c.filter.volatilePair(oldVal, attr.Val) {
			continue
		}
		changes = append(changes, Change{
			Type: attrChangeType(a.tag, attr.Key, AttrModified),
			Path: a.path,
			Details: []Detail{
				{Key: "attr", Value: attr.Key},
				{Key: "old", Value: oldVal},
				{Key: "new", Value: attr.Val},
			},
		})
	}

	for _, attr := range b.attrs {
		if c.filter.ignoreAttr(attr.Key) {
			continue
		}
		if _, still := a.attr(attr.Key); !still {
			changes = append(changes, Change{
				Type: attrChangeType(b.tag, attr.Key, AttrRemoved),
				Path: a.path,
				Details: []Detail{
					{Key: "attr", Value: attr.Key},
					{Key: "old", Value: attr.Val},
				},
			})
		}
	}

	return changes
}

// attrChangeType maps attribute-level deltas onto the specialized taxonomy
// entries where one exists; anything else keeps the generic type.
func attrChangeType(tag, attr string, generic ChangeType) ChangeType {
	switch attr {
	case "value":
		switch tag {
		case "input", "textarea", "select", "output":
			return FormValueChanged
		}
	case "checked":
		if tag == "input" {
			return CheckboxStateChanged
		}
	case "selected":
		if tag == "option" {
			return OptionSelectedChanged
		}
	case "style":
		return StyleChanged
	}
	return generic
}

// flatten parses a snapshot and returns its elements in document order.
// Non-HTML or empty snapshots flatten to nil.
func flatten(s *Snapshot) []*domNode {
	if s == nil || len(s.Data) == 0 {
		return nil
	}
	doc, err := html.Parse(bytes.NewReader(s.Data))
	if err != nil {
		return nil
	}
	var nodes []*domNode
	var walk func(n *html.Node, parentPath string)
	walk = func(n *html.Node, parentPath string) {
		// Position among same-tag element siblings, 1-based.
		counts := make(map[string]int)
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			tag := child.Data
			if tag == "script" || tag == "noscript" {
				continue
			}
			counts[tag]++
			path := fmt.Sprintf("%s/%s[%d]", parentPath, tag, counts[tag])
			nodes = append(nodes, &domNode{
				path:  path,
				tag:   tag,
				attrs: child.Attr,
				text:  directText(child),
			})
			walk(child, path)
		}
	}
	walk(doc, "")
	return nodes
}

// directText concatenates the trimmed text of a node's direct text children.
func directText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(child.Data))
		}
	}
	return b.String()
}
