package spectral

import (
	"fmt"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
	"github.com/RyanBlaney/sonido-stoi/algorithms/windowing"
)

// Framer slices a signal into overlapping, Hann-windowed frames.
//
// Frames start at 0, hop, 2·hop, ... and a start is only used while
// start < len(signal) - frameLength, so a signal of N samples yields
// ceil((N - frameLength) / hop) frames and none at all when
// N <= frameLength.
type Framer struct {
	frameLength int
	hopLength   int
	window      *windowing.Hann
}

// NewFramer creates a framer with a trimmed Hann window of frameLength samples
func NewFramer(frameLength, hopLength int) (*Framer, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLength)
	}
	if hopLength <= 0 || hopLength > frameLength {
		return nil, fmt.Errorf("hop length must be in [1, %d], got %d", frameLength, hopLength)
	}

	return &Framer{
		frameLength: frameLength,
		hopLength:   hopLength,
		window:      windowing.NewTrimmedHann(frameLength),
	}, nil
}

// FrameCount returns the number of frames a signal of n samples yields
func (f *Framer) FrameCount(n int) int {
	if n <= f.frameLength {
		return 0
	}
	return common.CeilDiv(n-f.frameLength, f.hopLength)
}

// Frames writes the windowed frames of signal into dst, one column per
// frame, reshaping dst as needed. dst may be nil.
func (f *Framer) Frames(dst *common.Matrix, signal []float64) *common.Matrix {
	count := f.FrameCount(len(signal))
	if dst == nil {
		dst = &common.Matrix{}
	}
	dst.Reshape(f.frameLength, count)

	for i := range count {
		start := i * f.hopLength
		f.window.ApplyTo(dst.Col(i), signal[start:start+f.frameLength])
	}

	return dst
}

// FrameLength returns the frame length in samples
func (f *Framer) FrameLength() int { return f.frameLength }

// HopLength returns the hop between frame starts in samples
func (f *Framer) HopLength() int { return f.hopLength }

// OverlapAdd sums the listed columns of frames at hop-sample offsets into
// a signal of (len(cols)-1)·hop + rows samples, reusing dst when large
// enough. A nil cols uses every column in order.
func OverlapAdd(dst []float64, frames *common.Matrix, cols []int, hop int) []float64 {
	count := len(cols)
	if cols == nil {
		count = frames.Cols
	}
	if count == 0 {
		return dst[:0]
	}

	n := (count-1)*hop + frames.Rows
	if cap(dst) < n {
		dst = make([]float64, n)
	} else {
		dst = dst[:n]
		clear(dst)
	}

	for i := range count {
		c := i
		if cols != nil {
			c = cols[i]
		}
		out := dst[i*hop : i*hop+frames.Rows]
		for j, v := range frames.Col(c) {
			out[j] += v
		}
	}

	return dst
}
