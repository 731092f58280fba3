package spectral

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTBackend names a real-FFT implementation
type FFTBackend string

const (
	BackendGonum FFTBackend = "gonum"
	BackendGoDSP FFTBackend = "go-dsp"
)

// Transform computes the one-sided power spectrum of a real frame.
//
// PowerSpectrum zero-pads frame to Size() samples and writes |X[k]|² for
// k = 0..Size()/2 into dst, which must have Bins() elements.
// Implementations are not safe for concurrent use.
type Transform interface {
	PowerSpectrum(dst, frame []float64)
	Size() int
	Bins() int
}

// NewTransform creates a Transform of the given size for the named backend
func NewTransform(backend FFTBackend, size int) (Transform, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", size)
	}

	switch backend {
	case BackendGonum, "":
		return NewGonumFFT(size), nil
	case BackendGoDSP:
		return NewDSPFFT(size), nil
	default:
		return nil, fmt.Errorf("unknown fft backend %q", backend)
	}
}

// GonumFFT wraps a gonum real FFT plan with its own work buffers
type GonumFFT struct {
	plan   *fourier.FFT
	size   int
	input  []float64
	coeffs []complex128
}

// NewGonumFFT creates a gonum-backed transform of the given size
func NewGonumFFT(size int) *GonumFFT {
	return &GonumFFT{
		plan:   fourier.NewFFT(size),
		size:   size,
		input:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
}

func (g *GonumFFT) PowerSpectrum(dst, frame []float64) {
	n := copy(g.input, frame)
	clear(g.input[n:])

	g.coeffs = g.plan.Coefficients(g.coeffs, g.input)
	for k, c := range g.coeffs {
		dst[k] = real(c)*real(c) + imag(c)*imag(c)
	}
}

func (g *GonumFFT) Size() int { return g.size }
func (g *GonumFFT) Bins() int { return g.size/2 + 1 }

// DSPFFT computes Fast Fourier Transform using mjibson/go-dsp
type DSPFFT struct {
	size  int
	input []float64
}

// NewDSPFFT creates a go-dsp backed transform of the given size
func NewDSPFFT(size int) *DSPFFT {
	return &DSPFFT{
		size:  size,
		input: make([]float64, size),
	}
}

func (d *DSPFFT) PowerSpectrum(dst, frame []float64) {
	n := copy(d.input, frame)
	clear(d.input[n:])

	// mjibson/go-dsp returns the full two-sided spectrum
	spectrum := fft.FFTReal(d.input)
	for k := range d.Bins() {
		c := spectrum[k]
		dst[k] = real(c)*real(c) + imag(c)*imag(c)
	}
}

func (d *DSPFFT) Size() int { return d.size }
func (d *DSPFFT) Bins() int { return d.size/2 + 1 }
