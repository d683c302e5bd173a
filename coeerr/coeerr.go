// Package coeerr defines the error taxonomy shared across the dispatch
// engine, transport, codec, and rendezvous packages: configuration,
// protocol, evaluator, and decode errors, per the error handling design.
//
// The core recovers nothing; every error defined here is meant to
// propagate to the caller or terminate the process (fail-fast), never
// to be silently retried.
package coeerr

import "fmt"

// Kind classifies an Error, for callers that need to branch on category
// (e.g. a worker's fail-fast exit path vs. a coordinator's fatal log).
type Kind int

const (
	// KindConfiguration covers invalid trigger values, oversubscribed
	// rendezvous buffers, and missing registered parameters.
	KindConfiguration Kind = iota
	// KindProtocol covers mismatched tag sequences and truncated payloads.
	KindProtocol
	// KindEvaluator covers failures inside user-supplied fitness functions.
	KindEvaluator
	// KindDecode covers malformed fitness or individual byte payloads.
	KindDecode
	// KindInvariant covers internal invariant violations, e.g. a
	// rendezvous producer observing a buffer already at or over trigger.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindEvaluator:
		return "evaluator"
	case KindDecode:
		return "decode"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised by this module's core
// components. It carries a Kind so callers can distinguish fatal
// protocol/decode failures (which should terminate a process) from
// configuration errors (which are returned synchronously to the
// caller, never recovered).
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "rendezvous.AddSet"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coevolve: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("coevolve: %s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind, supporting
// errors.Is(err, coeerr.Configuration) style checks via the sentinel
// kind wrappers below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Kind == e.Kind
}

// Configuration, Protocol, Evaluator, Decode, and Invariant are sentinel
// values usable with errors.Is(err, coeerr.Configuration) to test the
// Kind of an *Error without caring about Op or Err.
var (
	Configuration = &Error{Kind: KindConfiguration}
	Protocol      = &Error{Kind: KindProtocol}
	Evaluator     = &Error{Kind: KindEvaluator}
	Decode        = &Error{Kind: KindDecode}
	Invariant     = &Error{Kind: KindInvariant}
)
