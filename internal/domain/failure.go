package domain

import "errors"

type FailureKind int

const (
	// FailureTransient marks infrastructure conditions expected to succeed
	// on retry. The queue redelivers these.
	FailureTransient FailureKind = iota
	// FailurePermanent marks business or data failures. These become a
	// terminal ERROR and are never retried.
	FailurePermanent
)

// Failure carries an explicit retry classification alongside the cause, so
// the processor never has to guess from error text.
type Failure struct {
	Kind  FailureKind
	Cause error
}

func (f *Failure) Error() string {
	return f.Cause.Error()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func Transient(cause error) *Failure {
	return &Failure{Kind: FailureTransient, Cause: cause}
}

func Permanent(cause error) *Failure {
	return &Failure{Kind: FailurePermanent, Cause: cause}
}

// IsTransient reports whether err should trigger queue-level redelivery.
// Unclassified errors default to transient: the outer retry gives ambiguous
// infrastructure failures another chance, and attempts are bounded anyway.
func IsTransient(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == FailureTransient
	}
	return true
}
