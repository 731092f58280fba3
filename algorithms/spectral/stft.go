package spectral

import (
	"fmt"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
)

// STFT provides Short-Time Fourier Transform functionality over
// pre-windowed frame matrices
type STFT struct {
	fft Transform
}

// NewSTFT creates a new STFT calculator on top of the given transform
func NewSTFT(transform Transform) *STFT {
	return &STFT{fft: transform}
}

// PowerSpectrogram computes the one-sided power spectrum of every column of
// frames. The result has Bins() rows and one column per frame.
func (s *STFT) PowerSpectrogram(dst *common.Matrix, frames *common.Matrix) (*common.Matrix, error) {
	if frames.Rows > s.fft.Size() {
		return nil, fmt.Errorf("frame length %d exceeds fft size %d", frames.Rows, s.fft.Size())
	}

	if dst == nil {
		dst = &common.Matrix{}
	}
	dst.Reshape(s.fft.Bins(), frames.Cols)

	for c := range frames.Cols {
		s.fft.PowerSpectrum(dst.Col(c), frames.Col(c))
	}

	return dst, nil
}

// Bins returns the number of one-sided frequency bins
func (s *STFT) Bins() int {
	return s.fft.Bins()
}
