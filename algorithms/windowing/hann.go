package windowing

import (
	"gonum.org/v1/gonum/dsp/window"
)

// Hann is a Hann window whose zero-valued end points have been dropped:
// the inner size samples of a symmetric Hann window of length size+2.
// Every coefficient is strictly positive, so no part of a frame is
// discarded.
type Hann struct {
	values window.Values
}

// NewTrimmedHann creates a trimmed Hann window of the given size
func NewTrimmedHann(size int) *Hann {
	full := window.NewValues(window.Hann, size+2)
	return &Hann{values: full[1 : size+1]}
}

// ApplyTo writes the windowed signal into dst. Both must have the window size.
func (h *Hann) ApplyTo(dst, signal []float64) {
	h.values.TransformTo(dst, signal)
}
