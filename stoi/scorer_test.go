package stoi

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
)

func TestSegmentCount(t *testing.T) {
	tests := []struct {
		length, hop, frames, want int
	}{
		{30, 1, 29, 0},
		{30, 1, 30, 1},
		{30, 1, 100, 71},
		{30, 30, 100, 3},
		{30, 30, 90, 3},
		{30, 10, 59, 3},
	}

	for _, tt := range tests {
		s := &segmentScorer{length: tt.length, hop: tt.hop}
		if got := s.segmentCount(tt.frames); got != tt.want {
			t.Errorf("segmentCount(len=%d hop=%d frames=%d) = %d, want %d",
				tt.length, tt.hop, tt.frames, got, tt.want)
		}
	}
}

func TestClippingSaturates(t *testing.T) {
	clip := DefaultConfig().ClipFactor() // 1 + 10^(15/20)
	if math.Abs(clip-6.623413251903491) > 1e-12 {
		t.Fatalf("ClipFactor() = %v, want 6.623413251903491", clip)
	}

	rng := rand.New(rand.NewPCG(30, 30))
	x := make([]float64, 30)
	y := make([]float64, 30)
	for i := range x {
		x[i] = 0.5 + rng.Float64()
		y[i] = x[i] * (0.8 + 0.4*rng.Float64())
	}

	// once a sample exceeds the clip ceiling, how far it exceeds it must not
	// matter
	var first float64
	for i, boost := range []float64{10, 100, 1e6} {
		xs := append([]float64(nil), x...)
		ys := append([]float64(nil), y...)
		ys[7] = x[7] * clip * boost

		got := clippedCorrelation(xs, ys, clip)
		if i == 0 {
			first = got
			continue
		}
		if got != first {
			t.Errorf("boost %v: correlation %v, want %v", boost, got, first)
		}
	}

	// below the ceiling the boost does change the result
	xs := append([]float64(nil), x...)
	ys := append([]float64(nil), y...)
	ys[7] = x[7] * clip * 0.5
	if got := clippedCorrelation(xs, ys, clip); got == first {
		t.Errorf("unclipped sample had no effect")
	}

	// 6x lies between 10^(15/20) and the ceiling and must pass unclipped
	xs = append([]float64(nil), x...)
	ys = append([]float64(nil), y...)
	ys[7] = x[7] * 6
	unclipped := append([]float64(nil), ys...)
	got := clippedCorrelation(xs, ys, clip)
	if want := correlation(append([]float64(nil), x...), unclipped); math.Abs(got-want) > 1e-15 {
		t.Errorf("6x sample was clipped: correlation %v, want %v", got, want)
	}
}

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, 1},
		{"scaled and shifted", []float64{1, 2, 3, 4}, []float64{12, 14, 16, 18}, 1},
		{"anti", []float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}, -1},
		{"constant x", []float64{2, 2, 2, 2}, []float64{1, 2, 3, 4}, 0},
		{"constant y", []float64{1, 2, 3, 4}, []float64{0, 0, 0, 0}, 0},
		{"nearly constant", []float64{1, 1, 1, 1 + 1e-14}, []float64{1, 2, 3, 4}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := correlation(append([]float64(nil), tt.x...), append([]float64(nil), tt.y...))
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("correlation = %v, want %v", got, tt.want)
			}
			if math.IsNaN(got) {
				t.Errorf("correlation is NaN")
			}
		})
	}
}

func TestNormalizeEnergy(t *testing.T) {
	x := []float64{3, 4}
	y := []float64{0.6, 0.8}
	normalizeEnergy(y, x)
	if math.Abs(y[0]-3) > 1e-12 || math.Abs(y[1]-4) > 1e-12 {
		t.Errorf("normalised y = %v, want [3 4]", y)
	}

	zero := []float64{0, 0}
	normalizeEnergy(zero, x)
	for _, v := range zero {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("zero y became %v", zero)
		}
	}
}

func TestRowColNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentLength = 5
	s := newSegmentScorer(cfg)

	rng := rand.New(rand.NewPCG(31, 31))
	m := common.NewMatrix(4, 5)
	for i := range m.Data {
		m.Data[i] = rng.Float64()
	}

	s.rowColNormalize(m)

	for c := range m.Cols {
		col := m.Col(c)
		if math.Abs(common.Mean(col)) > 1e-12 {
			t.Errorf("column %d mean = %v", c, common.Mean(col))
		}
		if math.Abs(common.L2Norm(col)-1) > 1e-12 {
			t.Errorf("column %d norm = %v", c, common.L2Norm(col))
		}
	}
}

func TestScorersOnIdenticalBands(t *testing.T) {
	cfg := DefaultConfig()
	s := newSegmentScorer(cfg)

	rng := rand.New(rand.NewPCG(32, 32))
	bands := common.NewMatrix(15, 40)
	for i := range bands.Data {
		bands.Data[i] = rng.Float64() + 0.1
	}

	same := &common.Matrix{Rows: bands.Rows, Cols: bands.Cols, Data: append([]float64(nil), bands.Data...)}

	standard := append([]float64(nil), s.standard(bands, same)...)
	if len(standard) != 11*15 {
		t.Fatalf("standard produced %d scores, want %d", len(standard), 11*15)
	}
	for i, v := range standard {
		if math.Abs(v-1) > 1e-12 {
			t.Fatalf("standard score %d = %v, want 1", i, v)
		}
	}

	same = &common.Matrix{Rows: bands.Rows, Cols: bands.Cols, Data: append([]float64(nil), bands.Data...)}
	extended := s.extended(bands, same)
	if len(extended) != 11 {
		t.Fatalf("extended produced %d scores, want 11", len(extended))
	}
	for i, v := range extended {
		if math.Abs(v-1) > 1e-12 {
			t.Fatalf("extended score %d = %v, want 1", i, v)
		}
	}

	if got := aggregate(extended); math.Abs(got-1) > 1e-12 {
		t.Errorf("aggregate = %v, want 1", got)
	}
	if got := aggregate(nil); !math.IsNaN(got) {
		t.Errorf("aggregate(nil) = %v, want NaN", got)
	}
}
