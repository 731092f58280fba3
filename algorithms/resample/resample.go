// Package resample converts waveforms between sample rates.
package resample

import (
	"fmt"
	"slices"
)

// Method names a resampling implementation
type Method string

const (
	MethodPolyphase Method = "polyphase"
	MethodSoxr      Method = "soxr"
)

// Resampler converts a waveform sampled at from Hz to to Hz. The input is
// never modified; the output is a new slice owned by the caller.
type Resampler interface {
	Resample(x []float64, from, to int) ([]float64, error)
}

// New returns the resampler for the named method
func New(method Method) (Resampler, error) {
	switch method {
	case MethodPolyphase, "":
		return NewPolyphase(), nil
	case MethodSoxr:
		return NewSoxr(), nil
	default:
		return nil, fmt.Errorf("unknown resampling method %q", method)
	}
}

// validate checks the arguments shared by every implementation and reports
// whether the call is a no-op
func validate(x []float64, from, to int) (bool, error) {
	if from <= 0 || to <= 0 {
		return false, fmt.Errorf("sample rates must be positive: from=%d to=%d", from, to)
	}
	if len(x) == 0 {
		return false, fmt.Errorf("empty signal")
	}
	return from == to, nil
}

// OutputLength returns the number of samples produced when resampling n
// samples from one rate to another: ceil(n·to/from)
func OutputLength(n, from, to int) int {
	num := int64(n) * int64(to)
	out := num / int64(from)
	if num%int64(from) != 0 {
		out++
	}
	return int(out)
}

func passthrough(x []float64) []float64 {
	return slices.Clone(x)
}
