// Package synth drives validator synthesis: it asks the oracle for a
// candidate script, gates it on the new example and then on the whole
// corpus, and loops oracle repairs until acceptance or exhaustion.
package synth

import "fmt"

// OutcomeKind discriminates how a synthesis cycle ended.
type OutcomeKind int

const (
	// Accepted means a candidate passed the full corpus and was persisted.
	Accepted OutcomeKind = iota
	// AbortedExhausted means every repair attempt failed regression. The
	// last candidate is kept for inspection but nothing was persisted.
	AbortedExhausted
	// AbortedTransport means the backend became unreachable mid-cycle and
	// no judgement about any candidate was possible.
	AbortedTransport
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case AbortedExhausted:
		return "aborted_exhausted"
	case AbortedTransport:
		return "aborted_transport"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one synthesis cycle.
type Outcome struct {
	Kind OutcomeKind

	// Validator is the accepted script when Kind is Accepted, or the last
	// rejected candidate when Kind is AbortedExhausted.
	Validator string

	// Attempts is how many candidates were tested.
	Attempts int

	// Reason explains aborts: the last regression failure or the transport
	// error text.
	Reason string
}

// Ok reports whether the cycle produced an accepted validator.
func (o Outcome) Ok() bool { return o.Kind == Accepted }
