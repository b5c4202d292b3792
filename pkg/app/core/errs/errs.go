// Package errs classifies every rejection the core can produce so callers can
// tell "approve more, then retry" apart from "wait until expiry".
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category of a rejected call.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation: malformed parameters (granularity, past expiry, zero values).
	KindValidation
	// KindAuthorization: caller lacks the capability (non-owner, non-issuer, non-writer).
	KindAuthorization
	// KindInsufficient: missing allowance, collateral, balance or attached value.
	KindInsufficient
	// KindState: the lifecycle does not allow the call yet (or anymore).
	KindState
	// KindReentrancy: recursive entry into a component mid-mutation.
	KindReentrancy
	// KindInvariant: bookkeeping would break an invariant. Never expected.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindInsufficient:
		return "insufficient"
	case KindState:
		return "state"
	case KindReentrancy:
		return "reentrancy"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is a categorized sentinel. Package sentinels are *Error values and
// call sites wrap them with fmt.Errorf("%w: ...") to add context.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// New creates a categorized sentinel.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches formatted context to a sentinel.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf returns the category of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrReentrant is shared by every guarded component.
var ErrReentrant = New(KindReentrancy, "reentrant call")

// ErrOverflow is returned when an amount does not fit in 256 bits or cannot
// be parsed as one.
var ErrOverflow = New(KindValidation, "amount overflows")

// InvariantError carries a panic raised by a broken invariant inside a transaction.
type InvariantError struct {
	Value any
}

func (e *InvariantError) Error() string { return fmt.Sprintf("invariant violated: %v", e.Value) }

func (e *InvariantError) Unwrap() error { return invariantSentinel }

var invariantSentinel = New(KindInvariant, "invariant violated")
