package stoi

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func uniformNoise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64()
	}
	return x
}

func TestIdenticalSignalsScoreOne(t *testing.T) {
	tests := []struct {
		name     string
		fs       int
		extended bool
	}{
		{"stoi 8k", 8000, false},
		{"stoi 10k", 10000, false},
		{"stoi 16k", 16000, false},
		{"estoi 8k", 8000, true},
		{"estoi 16k", 16000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := uniformNoise(3*tt.fs, uint64(tt.fs))
			score, err := Compute(x, x, tt.fs, tt.extended)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if math.Abs(score-1) > 1e-6 {
				t.Errorf("score = %.10f, want 1", score)
			}
		})
	}
}

func TestUniformNoiseAt8kScoresOne(t *testing.T) {
	x := uniformNoise(24000, 1)
	score, err := Compute(x, x, 8000, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.Abs(score-1) > 1e-6 {
		t.Errorf("score = %.10f, want 1", score)
	}
}

func TestStackedPairsScoreEqually(t *testing.T) {
	x := uniformNoise(24000, 1)
	clean := make([][]float64, 16)
	for i := range clean {
		clean[i] = x
	}

	results, err := ComputeBatch(context.Background(), clean, clean, 8000, false)
	if err != nil {
		t.Fatalf("ComputeBatch: %v", err)
	}
	if len(results) != 16 {
		t.Fatalf("got %d results, want 16", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("result %d: %v", i, r.Err)
		}
		if math.Abs(r.Score-1) > 1e-6 {
			t.Errorf("result %d = %.10f, want 1", i, r.Score)
		}
		if math.Abs(r.Score-results[0].Score) > 1e-7 {
			t.Errorf("result %d = %.10f differs from result 0 = %.10f", i, r.Score, results[0].Score)
		}
	}
}

func TestDegradationLowersScore(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	clean := speechLike(16000*2, 16000, rng)

	prev := 1.0
	for _, noise := range []float64{0.05, 0.3, 1.5} {
		degraded := degrade(clean, noise, rng)
		for _, extended := range []bool{false, true} {
			score, err := Compute(clean, degraded, 16000, extended)
			if err != nil {
				t.Fatalf("noise %v extended %v: %v", noise, extended, err)
			}
			if score >= 1 {
				t.Errorf("noise %v extended %v: score %v, want < 1", noise, extended, score)
			}
			if !extended {
				if score >= prev {
					t.Errorf("noise %v: score %v did not drop below %v", noise, score, prev)
				}
				prev = score
			}
		}
	}
}

func TestSilentReference(t *testing.T) {
	clean := make([]float64, 30000)
	degraded := uniformNoise(30000, 3)

	for _, extended := range []bool{false, true} {
		score, err := Compute(clean, degraded, 10000, extended)
		if !errors.Is(err, ErrSilentReference) {
			t.Errorf("extended=%v: err = %v, want ErrSilentReference", extended, err)
		}
		if !IsDegenerate(err) {
			t.Errorf("IsDegenerate(%v) = false", err)
		}
		if !math.IsNaN(score) {
			t.Errorf("extended=%v: score = %v, want NaN", extended, score)
		}
	}
}

func TestUnderflowingReferenceIsSilent(t *testing.T) {
	tiny := uniformNoise(32000, 5)
	for i := range tiny {
		tiny[i] *= 1e-300
	}

	for _, extended := range []bool{false, true} {
		score, err := Compute(tiny, tiny, 16000, extended)
		if !errors.Is(err, ErrSilentReference) {
			t.Errorf("extended=%v: err = %v, want ErrSilentReference", extended, err)
		}
		if !math.IsNaN(score) {
			t.Errorf("extended=%v: score = %v, want NaN", extended, score)
		}
	}
}

func TestInsufficientFrames(t *testing.T) {
	// 20 frames at 10 kHz: above one frame, below one segment
	x := uniformNoise(256+20*128, 4)
	score, err := Compute(x, x, 10000, false)
	if !errors.Is(err, ErrInsufficientFrames) {
		t.Fatalf("err = %v, want ErrInsufficientFrames", err)
	}
	if !math.IsNaN(score) {
		t.Errorf("score = %v, want NaN", score)
	}
}

func TestParameterErrors(t *testing.T) {
	x := uniformNoise(30000, 5)

	tests := []struct {
		name       string
		clean, deg []float64
		fs         int
		want       error
	}{
		{"zero rate", x, x, 0, ErrInvalidSampleRate},
		{"negative rate", x, x, -8000, ErrInvalidSampleRate},
		{"empty", nil, nil, 10000, ErrEmptySignal},
		{"length mismatch", x, x[:29999], 10000, ErrLengthMismatch},
		{"nan", withValue(x, math.NaN()), x, 10000, ErrNonFinite},
		{"inf", x, withValue(x, math.Inf(1)), 10000, ErrNonFinite},
		{"shorter than a frame", x[:256], x[:256], 10000, ErrTooShort},
		{"short after resampling", x[:300], x[:300], 16000, ErrTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Compute(tt.clean, tt.deg, tt.fs, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if IsDegenerate(err) {
				t.Errorf("parameter error reported as degenerate")
			}
			if !math.IsNaN(score) {
				t.Errorf("score = %v, want NaN", score)
			}
		})
	}
}

func withValue(x []float64, v float64) []float64 {
	y := append([]float64(nil), x...)
	y[len(y)/2] = v
	return y
}

func TestInputsAreNotModified(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 6))
	clean := speechLike(16000, 16000, rng)
	degraded := degrade(clean, 0.2, rng)
	cleanCopy := append([]float64(nil), clean...)
	degradedCopy := append([]float64(nil), degraded...)

	if _, err := Compute(clean, degraded, 16000, true); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range clean {
		if clean[i] != cleanCopy[i] || degraded[i] != degradedCopy[i] {
			t.Fatalf("input modified at %d", i)
		}
	}
}

func TestEvaluatorReuseIsDeterministic(t *testing.T) {
	e, err := NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	rng := rand.New(rand.NewPCG(8, 8))
	a := speechLike(12000, 10000, rng)
	b := degrade(a, 0.4, rng)
	short := speechLike(8000, 10000, rng)

	first, err := e.Score(a, b, 10000)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// a run of a different length in between must not leak state
	if _, err := e.Score(short, short, 10000); err != nil {
		t.Fatalf("Score short: %v", err)
	}
	second, err := e.Score(a, b, 10000)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if first != second {
		t.Errorf("scores differ across runs: %v vs %v", first, second)
	}
}

func TestFFTBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 10))
	clean := speechLike(20000, 10000, rng)
	degraded := degrade(clean, 0.5, rng)

	cfg := DefaultConfig()
	gonum, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	cfg.FFTBackend = "go-dsp"
	godsp, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	a, err := gonum.Score(clean, degraded, 10000)
	if err != nil {
		t.Fatalf("gonum: %v", err)
	}
	b, err := godsp.Score(clean, degraded, 10000)
	if err != nil {
		t.Fatalf("go-dsp: %v", err)
	}
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("gonum %v vs go-dsp %v", a, b)
	}
}

func TestSoxrResamplerScoresIdentityAsOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resampler = "soxr"
	e, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	x := uniformNoise(48000, 12)
	score, err := e.Score(x, x, 16000)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(score-1) > 1e-6 {
		t.Errorf("score = %v, want 1", score)
	}
}

func TestNonOverlappingSegments(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 13))
	clean := speechLike(30000, 10000, rng)
	degraded := degrade(clean, 0.3, rng)

	cfg := DefaultConfig()
	cfg.SegmentHop = cfg.SegmentLength
	e, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	score, err := e.Score(clean, degraded, 10000)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	sliding, err := Compute(clean, degraded, 10000, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if score <= 0 || score >= 1 {
		t.Errorf("score = %v, want in (0, 1)", score)
	}
	if math.Abs(score-sliding) > 0.1 {
		t.Errorf("non-overlapping %v far from sliding %v", score, sliding)
	}
}

func TestMetricAdapter(t *testing.T) {
	m, err := NewMetric(16000, true)
	if err != nil {
		t.Fatalf("NewMetric: %v", err)
	}
	if m.SampleRate() != 16000 || !m.Evaluator().Config().Extended {
		t.Fatalf("metric not configured as requested")
	}

	rng := rand.New(rand.NewPCG(14, 14))
	clean := speechLike(24000, 16000, rng)
	degraded := degrade(clean, 0.3, rng)

	single, err := m.Call(clean, degraded)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	direct, err := Compute(clean, degraded, 16000, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if single != direct {
		t.Errorf("Call = %v, Compute = %v", single, direct)
	}

	results, err := m.CallBatch(context.Background(), [][]float64{clean}, [][]float64{degraded})
	if err != nil {
		t.Fatalf("CallBatch: %v", err)
	}
	if results[0].Score != single {
		t.Errorf("CallBatch = %v, Call = %v", results[0].Score, single)
	}

	if _, err := NewMetric(0, false); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("NewMetric(0) err = %v", err)
	}
}
