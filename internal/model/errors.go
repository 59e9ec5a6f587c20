package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind names a failure the pipeline reports upward
type ErrorKind string

const (
	KindUnsupportedFormat          ErrorKind = "UnsupportedFormat"
	KindExtractionFailed           ErrorKind = "ExtractionFailed"
	KindEvidenceServiceUnavailable ErrorKind = "EvidenceServiceUnavailable"
	KindMisconfigured              ErrorKind = "Misconfigured"
	KindModelUnavailable           ErrorKind = "ModelUnavailable"
	KindUnparsableModelOutput      ErrorKind = "UnparsableModelOutput"
	KindInvalidConfidence          ErrorKind = "InvalidConfidence"
	KindTimeout                    ErrorKind = "Timeout"
)

// Sentinels for errors.Is checks against a kind
var (
	ErrUnsupportedFormat          = &Error{Kind: KindUnsupportedFormat}
	ErrExtractionFailed           = &Error{Kind: KindExtractionFailed}
	ErrEvidenceServiceUnavailable = &Error{Kind: KindEvidenceServiceUnavailable}
	ErrMisconfigured              = &Error{Kind: KindMisconfigured}
	ErrModelUnavailable           = &Error{Kind: KindModelUnavailable}
	ErrUnparsableModelOutput      = &Error{Kind: KindUnparsableModelOutput}
	ErrInvalidConfidence          = &Error{Kind: KindInvalidConfidence}
	ErrTimeout                    = &Error{Kind: KindTimeout}
)

// Error is a classified pipeline failure
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// NewError builds a classified error wrapping cause (which may be nil)
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ContextError converts a context failure into a Timeout, or returns nil
// when ctx is still live. Cancellation is reported as Timeout as well since
// both abort the remaining stages the same way.
func ContextError(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return NewError(KindTimeout, stage+" aborted", err)
	}
	return nil
}
