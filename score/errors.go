package score

import (
	"errors"
	"fmt"
)

// Failures of a single fragment or fragment pair. None of them are retried;
// the batch driver logs them and moves on to the next pair.
var (
	ErrEmptyFragment                  = errors.New("fragment has no notes")
	ErrInconsistentTimeSignature      = errors.New("fragment has more than one bar length")
	ErrUnsupportedTimeSignatureChange = errors.New("time signature changes are not supported")
	ErrInsufficientCurveData          = errors.New("not enough points to fit a curve")
	ErrBarLengthMismatch              = errors.New("fragments disagree on bar length")
)

// ParseError reports a file that could not be read as a fragment.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
