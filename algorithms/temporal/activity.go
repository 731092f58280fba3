package temporal

import (
	"errors"
	"math"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
)

// ErrNoActiveFrames is returned when no frame of the reference carries
// energy, so there is nothing to score
var ErrNoActiveFrames = errors.New("no active frames")

// ActivityDetector keeps the frames whose energy lies within DynamicRange dB
// of the loudest frame. Frames are the columns of a column-major matrix
// (windowed time-domain frames, or band amplitudes).
type ActivityDetector struct {
	DynamicRange float64
}

// NewActivityDetector creates a detector with the given dynamic range in dB
func NewActivityDetector(dynamicRange float64) *ActivityDetector {
	return &ActivityDetector{DynamicRange: dynamicRange}
}

// FrameEnergies returns 20·log10(‖column‖₂ + eps) for every column
func (ad *ActivityDetector) FrameEnergies(frames *common.Matrix) []float64 {
	energies := make([]float64, frames.Cols)
	for c := range frames.Cols {
		energies[c] = common.Decibels(common.L2Norm(frames.Col(c)))
	}
	return energies
}

// Detect returns the ascending indices of the columns whose energy is
// strictly above max - DynamicRange. All-zero columns are never retained,
// so a silent reference yields ErrNoActiveFrames instead of an index set
// that covers pure silence.
func (ad *ActivityDetector) Detect(frames *common.Matrix) ([]int, error) {
	if frames.Cols == 0 {
		return nil, ErrNoActiveFrames
	}

	energies := ad.FrameEnergies(frames)

	peak := math.Inf(-1)
	for _, e := range energies {
		peak = max(peak, e)
	}
	threshold := peak - ad.DynamicRange

	retained := make([]int, 0, len(energies))
	for c, e := range energies {
		if e > threshold && !isSilent(frames.Col(c)) {
			retained = append(retained, c)
		}
	}

	if len(retained) == 0 {
		return nil, ErrNoActiveFrames
	}

	return retained, nil
}

func isSilent(frame []float64) bool {
	for _, v := range frame {
		if v != 0 {
			return false
		}
	}
	return true
}
