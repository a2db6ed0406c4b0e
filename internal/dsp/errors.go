package dsp

import (
	"errors"
	"fmt"
)

// Kind classifies a decoding error. The set is closed: callers switch on it
// to decide between aborting and degrading gracefully.
type Kind int

const (
	// KindConfig is an invalid numeric parameter: non-positive rate,
	// attenuation or width, or a cutoff outside the usable band.
	KindConfig Kind = iota + 1
	// KindOverflow is a resample ratio or filter too large to process safely.
	KindOverflow
	// KindDegenerate is input that can only produce a fallback result, such
	// as an empty signal or a constant image.
	KindDegenerate
	// KindNoSync means no sync frame was detected and lines were cut at a
	// fixed length from the start of the signal.
	KindNoSync
	// KindInvalidSample is a NaN or infinite sample in the input.
	KindInvalidSample
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindOverflow:
		return "overflow risk"
	case KindDegenerate:
		return "degenerate input"
	case KindNoSync:
		return "no sync detected"
	case KindInvalidSample:
		return "invalid sample"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fatal reports whether errors of this kind abort the pipeline. Degenerate
// input and missing sync are reported as warnings next to a usable result.
func (k Kind) Fatal() bool {
	return k != KindDegenerate && k != KindNoSync
}

// Error is the error type returned by the dsp and apt packages. Param and
// Value name the offending parameter when there is one.
type Error struct {
	Kind  Kind
	Param string
	Value float64
	Msg   string
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s (%s = %g)", e.Kind, e.Msg, e.Param, e.Value)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConfig)
// works regardless of the parameter involved.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfig        = &Error{Kind: KindConfig, Msg: "invalid parameter"}
	ErrOverflow      = &Error{Kind: KindOverflow, Msg: "ratio too large"}
	ErrDegenerate    = &Error{Kind: KindDegenerate, Msg: "degenerate input"}
	ErrNoSync        = &Error{Kind: KindNoSync, Msg: "no sync frames found"}
	ErrInvalidSample = &Error{Kind: KindInvalidSample, Msg: "non-finite sample"}
)

func configError(param string, value float64, msg string) error {
	return &Error{Kind: KindConfig, Param: param, Value: value, Msg: msg}
}

func overflowError(param string, value float64, msg string) error {
	return &Error{Kind: KindOverflow, Param: param, Value: value, Msg: msg}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
