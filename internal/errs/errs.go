// Package errs defines the error kinds shared by the completion, coordinator
// and scheduling layers. Callers branch on the kind instead of matching text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retry, fallback
// and abort.
type Kind int

const (
	KindUnknown Kind = iota

	KindTransport            // completion service call failed
	KindMalformedOutput      // response could not be parsed as structured output
	KindUnknownWorker        // task references a worker absent from the registry
	KindDependencyUnresolved // dependency reference could not be mapped to a task id
	KindCoordinatorStage     // define-workers, plan or aggregate failed
	KindEvaluation           // evaluation call failed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindMalformedOutput:
		return "malformed output"
	case KindUnknownWorker:
		return "unknown worker"
	case KindDependencyUnresolved:
		return "dependency unresolved"
	case KindCoordinatorStage:
		return "coordinator stage failure"
	case KindEvaluation:
		return "evaluation failure"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error whose cause is a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
