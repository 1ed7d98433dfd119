package engine

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies structured action failures. Failures are reported through
// the action result shape; none of them are transport errors and none of
// them crash the engine.
type Kind int

const (
	// KindValidation covers unknown actions and bad arguments.
	KindValidation Kind = iota + 1
	// KindStaleRef means the reference is absent from the current table;
	// the caller must take a new snapshot.
	KindStaleRef
	// KindNotFound means the stored descriptor matches no live element.
	KindNotFound
	// KindTimeout means an inner per-operation bound was exceeded. The
	// engine stays healthy.
	KindTimeout
	// KindDriver covers all other automation-driver failures.
	KindDriver
)

// ActionError is a structured action failure.
type ActionError struct {
	Kind    Kind
	Message string
}

func (e *ActionError) Error() string { return e.Message }

func validationErrf(format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func staleRefErrf(format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: KindStaleRef, Message: fmt.Sprintf(format, args...)}
}

func notFoundErrf(format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// actionFailure wraps a driver error under a caller-facing prefix,
// classifying deadline expiry as a timeout.
func actionFailure(prefix string, err error) *ActionError {
	kind := KindDriver
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ActionError{Kind: kind, Message: fmt.Sprintf("%s: %v", prefix, err)}
}

// ErrorKind extracts the failure classification, or zero for non-action
// errors.
func ErrorKind(err error) Kind {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
