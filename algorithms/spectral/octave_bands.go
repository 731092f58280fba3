package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
)

// BandShape selects the weighting applied to the FFT bins of a band
type BandShape string

const (
	BandRectangular BandShape = "rectangular"
	BandTriangular  BandShape = "triangular"
)

// Band describes one one-third-octave band. Bins [Low, High) of the
// one-sided spectrum contribute to it.
type Band struct {
	Center float64 `json:"center"`
	Low    int     `json:"low"`
	High   int     `json:"high"`
}

// OctaveBands maps a one-sided power spectrum onto one-third-octave bands.
// The weight matrix is read-only after construction and may be shared
// between goroutines.
type OctaveBands struct {
	sampleRate int
	fftSize    int
	bands      []Band
	weights    *mat.Dense // bands x bins
}

// NewOctaveBands builds numBands one-third-octave bands starting at minFreq
// for a spectrum of fftSize/2+1 bins at sampleRate. Band k has centre
// minFreq·2^(k/3) and edges minFreq·2^((2k∓1)/6), each snapped to the
// nearest FFT bin.
func NewOctaveBands(sampleRate, fftSize, numBands int, minFreq float64, shape BandShape) (*OctaveBands, error) {
	if sampleRate <= 0 || fftSize <= 0 || numBands <= 0 || minFreq <= 0 {
		return nil, fmt.Errorf("invalid octave band parameters: rate=%d fft=%d bands=%d min=%.1f",
			sampleRate, fftSize, numBands, minFreq)
	}

	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}

	ob := &OctaveBands{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		bands:      make([]Band, numBands),
		weights:    mat.NewDense(numBands, bins, nil),
	}

	for k := range numBands {
		kf := float64(k)
		center := minFreq * math.Pow(2, kf/3)
		low := nearestBin(freqs, minFreq*math.Pow(2, (2*kf-1)/6))
		high := nearestBin(freqs, minFreq*math.Pow(2, (2*kf+1)/6))

		if high <= low {
			return nil, fmt.Errorf("band %d (%.1f Hz) is empty at %d Hz / fft %d", k, center, sampleRate, fftSize)
		}

		ob.bands[k] = Band{Center: center, Low: low, High: high}

		switch shape {
		case BandRectangular, "":
			for b := low; b < high; b++ {
				ob.weights.Set(k, b, 1)
			}
		case BandTriangular:
			peak := min(max(nearestBin(freqs, center), low), high-1)
			for b := low; b <= peak; b++ {
				ob.weights.Set(k, b, float64(b-low+1)/float64(peak-low+1))
			}
			for b := peak + 1; b < high; b++ {
				ob.weights.Set(k, b, float64(high-b)/float64(high-peak))
			}
		default:
			return nil, fmt.Errorf("unknown band shape %q", shape)
		}
	}

	return ob, nil
}

// nearestBin returns the index of the bin frequency closest to hz. Ties go
// to the lower bin.
func nearestBin(freqs []float64, hz float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, f := range freqs {
		d := (f - hz) * (f - hz)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Apply computes band amplitudes sqrt(W·P) for every column of the power
// spectrogram. The result has one row per band and one column per frame.
func (ob *OctaveBands) Apply(dst *common.Matrix, power *common.Matrix) (*common.Matrix, error) {
	_, bins := ob.weights.Dims()
	if power.Rows != bins {
		return nil, fmt.Errorf("spectrogram has %d bins, bands expect %d", power.Rows, bins)
	}

	if dst == nil {
		dst = &common.Matrix{}
	}
	dst.Reshape(len(ob.bands), power.Cols)
	if power.Cols == 0 {
		return dst, nil
	}

	// (frames x bins)·(bins x bands) in the transposed views is exactly
	// the column-major (bands x frames) product W·P
	dst.Dense().Mul(power.Dense(), ob.weights.T())

	for i, v := range dst.Data {
		dst.Data[i] = math.Sqrt(v)
	}

	return dst, nil
}

// Bands returns a copy of the band layout
func (ob *OctaveBands) Bands() []Band {
	out := make([]Band, len(ob.bands))
	copy(out, ob.bands)
	return out
}

// NumBands returns the number of bands
func (ob *OctaveBands) NumBands() int {
	return len(ob.bands)
}
