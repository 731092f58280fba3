package stoi

import "errors"

// Parameter and shape errors. These are returned before any computation.
var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrEmptySignal       = errors.New("empty signal")
	ErrLengthMismatch    = errors.New("clean and degraded signals differ in length")
	ErrNonFinite         = errors.New("signal contains NaN or Inf samples")
	ErrBatchShape        = errors.New("malformed batch shape")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrTooShort          = errors.New("signal shorter than one analysis frame")
)

// Degenerate-input outcomes. The score accompanying these errors is NaN.
var (
	// ErrSilentReference means activity detection removed every frame of
	// the clean reference.
	ErrSilentReference = errors.New("clean reference is silent: no frames survive activity detection")

	// ErrInsufficientFrames means fewer active frames remain than one
	// scoring segment needs.
	ErrInsufficientFrames = errors.New("not enough active frames for one segment")
)

// IsDegenerate reports whether err is one of the documented degenerate
// outcomes rather than a caller error
func IsDegenerate(err error) bool {
	return errors.Is(err, ErrSilentReference) || errors.Is(err, ErrInsufficientFrames)
}
