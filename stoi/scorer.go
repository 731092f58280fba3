package stoi

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
)

// zeroVarianceTol is the relative norm below which a centred sequence is
// treated as constant
const zeroVarianceTol = 1e-10

// segmentScorer correlates clean and degraded band amplitudes over
// segments of consecutive frames. It owns its scratch space and is reused
// across runs by one pipeline.
type segmentScorer struct {
	length     int     // frames per segment
	hop        int     // frames between segment starts
	clipFactor float64 // ceiling of degraded/clean amplitude ratio

	x, y   []float64      // one band over one segment
	xs, ys *common.Matrix // all bands over one segment
	row    []float64
	scores []float64
}

func newSegmentScorer(cfg *Config) *segmentScorer {
	return &segmentScorer{
		length:     cfg.SegmentLength,
		hop:        cfg.SegmentHop,
		clipFactor: cfg.ClipFactor(),
		x:          make([]float64, cfg.SegmentLength),
		y:          make([]float64, cfg.SegmentLength),
		row:        make([]float64, cfg.SegmentLength),
		xs:         &common.Matrix{},
		ys:         &common.Matrix{},
	}
}

// segmentCount returns how many segments fit in frames frames
func (s *segmentScorer) segmentCount(frames int) int {
	if frames < s.length {
		return 0
	}
	return (frames-s.length)/s.hop + 1
}

// standard returns one clipped correlation per (segment, band), clean and
// degraded being bands x frames matrices of equal shape
func (s *segmentScorer) standard(clean, degraded *common.Matrix) []float64 {
	segments := s.segmentCount(clean.Cols)
	s.scores = s.scores[:0]

	for m := range segments {
		start := m * s.hop
		for band := range clean.Rows {
			x := clean.Row(s.x, band, start)
			y := degraded.Row(s.y, band, start)

			normalizeEnergy(y, x)
			s.scores = append(s.scores, clippedCorrelation(x, y, s.clipFactor))
		}
	}

	return s.scores
}

// normalizeEnergy scales y in place to the L2 energy of x
func normalizeEnergy(y, x []float64) {
	alpha := common.L2Norm(x) / (common.L2Norm(y) + common.Eps)
	floats.Scale(alpha, y)
}

// clippedCorrelation limits y to clipFactor·x element-wise, then returns the
// Pearson correlation of x and y. A constant sequence correlates as 0.
// x and y are overwritten.
func clippedCorrelation(x, y []float64, clipFactor float64) float64 {
	for i := range y {
		y[i] = math.Min(y[i], x[i]*clipFactor)
	}
	return correlation(x, y)
}

// correlation centres and unit-normalises x and y in place and returns their
// inner product
func correlation(x, y []float64) float64 {
	xScale := common.L2Norm(x)
	yScale := common.L2Norm(y)

	common.SubtractMean(x)
	common.SubtractMean(y)

	xNorm := common.UnitNormalize(x)
	yNorm := common.UnitNormalize(y)

	if xNorm <= zeroVarianceTol*xScale || yNorm <= zeroVarianceTol*yScale {
		return 0
	}

	return floats.Dot(x, y)
}

// extended returns one spectral-correlation score per segment. Each segment
// is normalised per band over time, then per frame across bands, and scored
// as the mean inner product of matching frame vectors.
func (s *segmentScorer) extended(clean, degraded *common.Matrix) []float64 {
	segments := s.segmentCount(clean.Cols)
	bands := clean.Rows
	s.scores = s.scores[:0]
	s.xs.Reshape(bands, s.length)
	s.ys.Reshape(bands, s.length)

	for m := range segments {
		start := m * s.hop
		// columns are contiguous, so a segment is one slice copy
		copy(s.xs.Data, clean.Data[start*bands:(start+s.length)*bands])
		copy(s.ys.Data, degraded.Data[start*bands:(start+s.length)*bands])

		s.rowColNormalize(s.xs)
		s.rowColNormalize(s.ys)

		sum := 0.0
		for c := range s.length {
			sum += floats.Dot(s.xs.Col(c), s.ys.Col(c))
		}
		s.scores = append(s.scores, sum/float64(s.length))
	}

	return s.scores
}

// rowColNormalize gives every row of m zero mean and unit norm, then does
// the same for every column. Constant rows and columns become zero.
func (s *segmentScorer) rowColNormalize(m *common.Matrix) {
	for r := range m.Rows {
		row := m.Row(s.row, r, 0)
		normalizeVector(row)
		for c, v := range row {
			m.Set(r, c, v)
		}
	}

	for c := range m.Cols {
		normalizeVector(m.Col(c))
	}
}

// normalizeVector centres v and scales it to unit norm, zeroing it when it
// is constant
func normalizeVector(v []float64) {
	scale := common.L2Norm(v)
	common.SubtractMean(v)
	if norm := common.UnitNormalize(v); norm <= zeroVarianceTol*scale {
		clear(v)
	}
}

// aggregate averages the per-segment scores into the final measure
func aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return math.NaN()
	}
	return stat.Mean(scores, nil)
}
