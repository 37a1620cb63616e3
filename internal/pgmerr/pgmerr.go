// Package pgmerr defines the shared error sum-type surfaced across the
// calculation core. Failures of the kinds below are returned as a
// *pgmerr.Error (through the standard error interface), so callers can
// branch on Kind with errors.As; other failures (file I/O, index and length
// checks, graph construction) are plain fmt.Errorf errors.
package pgmerr

import "fmt"

// Kind enumerates the error taxonomy named in the public calculation API.
type Kind int

const (
	// SerializationError indicates a schema violation while decoding a dataset.
	SerializationError Kind = iota
	// InvalidCalculationMethod indicates an unrecognized calculation_method option.
	InvalidCalculationMethod
	// SingularMatrix indicates a pivot magnitude fell below the factorization tolerance.
	SingularMatrix
	// IterationDiverge indicates the solver exceeded its iteration limit without converging.
	IterationDiverge
	// InvalidShortCircuitPhases indicates a short-circuit phase selection the solver cannot honor.
	InvalidShortCircuitPhases
	// MissingCaseForEnumError indicates a switch over an enum did not cover a value.
	MissingCaseForEnumError
	// Unreachable indicates an invariant the caller believed could never be violated.
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case SerializationError:
		return "SerializationError"
	case InvalidCalculationMethod:
		return "InvalidCalculationMethod"
	case SingularMatrix:
		return "SingularMatrix"
	case IterationDiverge:
		return "IterationDiverge"
	case InvalidShortCircuitPhases:
		return "InvalidShortCircuitPhases"
	case MissingCaseForEnumError:
		return "MissingCaseForEnumError"
	case Unreachable:
		return "Unreachable"
	default:
		return "Unknown"
	}
}

// Error is the sum-type carrying a Kind, a human message and, for
// deserialization failures, the path at which the violation occurred.
type Error struct {
	Kind    Kind
	Message string
	Path    string
	wrapped error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind that also wraps an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: cause}
}

// WithPath returns a copy of e with Path set, used by the deserializer's
// scoped path guard to enrich an error as it propagates out of nested scopes.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if e, ok := err.(*Error); ok {
		pe = e
	} else {
		return false
	}
	return pe.Kind == kind
}

// IterationDivergeDetail describes the deviation/iteration count at the
// point iteration was abandoned, mirroring IterationDiverge(last_deviation, iterations) from §7.
type IterationDivergeDetail struct {
	LastDeviation float64
	Iterations    int
}

// NewIterationDiverge builds a pgmerr.Error of kind IterationDiverge carrying
// the last observed deviation and iteration count.
func NewIterationDiverge(lastDeviation float64, iterations int) *Error {
	return New(IterationDiverge, "failed to converge after %d iterations (last deviation %.3e)", iterations, lastDeviation)
}
