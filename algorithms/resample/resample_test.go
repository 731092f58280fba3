package resample

import (
	"math"
	"math/rand/v2"
	"testing"
)

func randomSignal(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}
	return x
}

func TestOutputLength(t *testing.T) {
	tests := []struct {
		n, from, to, want int
	}{
		{24000, 8000, 10000, 30000},
		{16000, 16000, 10000, 10000},
		{3, 3, 2, 2},
		{1, 44100, 10000, 1},
		{100, 10000, 10000, 100},
	}
	for _, tt := range tests {
		if got := OutputLength(tt.n, tt.from, tt.to); got != tt.want {
			t.Errorf("OutputLength(%d, %d, %d) = %d, want %d", tt.n, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSameRateIsBitExactCopy(t *testing.T) {
	x := randomSignal(1000, 7)

	for _, method := range []Method{MethodPolyphase, MethodSoxr} {
		t.Run(string(method), func(t *testing.T) {
			r, err := New(method)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			y, err := r.Resample(x, 10000, 10000)
			if err != nil {
				t.Fatalf("Resample: %v", err)
			}
			if len(y) != len(x) {
				t.Fatalf("len = %d, want %d", len(y), len(x))
			}
			for i := range x {
				if y[i] != x[i] {
					t.Fatalf("sample %d = %v, want %v", i, y[i], x[i])
				}
			}
			y[0] = 42
			if x[0] == 42 {
				t.Errorf("output aliases input")
			}
		})
	}
}

func TestResampleRejectsBadInput(t *testing.T) {
	p := NewPolyphase()
	if _, err := p.Resample(nil, 8000, 10000); err == nil {
		t.Errorf("expected error for empty signal")
	}
	if _, err := p.Resample([]float64{1}, 0, 10000); err == nil {
		t.Errorf("expected error for zero rate")
	}
	if _, err := New("linear"); err == nil {
		t.Errorf("expected error for unknown method")
	}
}

func TestPolyphaseFilterDesign(t *testing.T) {
	f := designFilter(5, 4)

	// L = ceil(52 / (28.714 · 0.01)) for a cutoff of 1/10
	if f.half != 182 {
		t.Errorf("half length = %d, want 182", f.half)
	}
	sum := 0.0
	for _, v := range f.taps {
		sum += v
	}
	if math.Abs(sum-5) > 1e-12 {
		t.Errorf("tap sum = %v, want 5", sum)
	}
	for i := range f.half {
		if math.Abs(f.taps[i]-f.taps[len(f.taps)-1-i]) > 1e-14 {
			t.Fatalf("taps not symmetric at %d", i)
		}
	}
}

// directResample upsamples with zeros, convolves with the full filter and
// decimates, compensating the filter delay
func directResample(x []float64, up, down int) []float64 {
	f := designFilter(up, down)

	upsampled := make([]float64, len(x)*up)
	for i, v := range x {
		upsampled[i*up] = v
	}

	n := (len(x)*up + down - 1) / down
	out := make([]float64, n)
	for i := range out {
		centre := i * down
		sum := 0.0
		for k, h := range f.taps {
			j := centre + f.half - k
			if j >= 0 && j < len(upsampled) {
				sum += upsampled[j] * h
			}
		}
		out[i] = sum
	}
	return out
}

func TestPolyphaseMatchesDirectConvolution(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"8k to 10k", 8000, 10000},
		{"16k to 10k", 16000, 10000},
		{"44.1k to 10k", 44100, 10000},
	}

	p := NewPolyphase()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := randomSignal(2000, 11)
			got, err := p.Resample(x, tt.from, tt.to)
			if err != nil {
				t.Fatalf("Resample: %v", err)
			}

			g := gcd(tt.from, tt.to)
			want := directResample(x, tt.to/g, tt.from/g)
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-10 {
					t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func TestPolyphasePreservesDC(t *testing.T) {
	x := make([]float64, 8000)
	for i := range x {
		x[i] = 0.5
	}

	y, err := NewPolyphase().Resample(x, 8000, 10000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(y) != 10000 {
		t.Fatalf("len = %d, want 10000", len(y))
	}

	// away from the edges the filter sees only the constant
	for i := 1000; i < 9000; i++ {
		if math.Abs(y[i]-0.5) > 5e-3 {
			t.Fatalf("sample %d = %v, want 0.5", i, y[i])
		}
	}
}

func TestSoxrLength(t *testing.T) {
	x := randomSignal(16000, 3)
	y, err := NewSoxr().Resample(x, 16000, 10000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(y) != 10000 {
		t.Fatalf("len = %d, want 10000", len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}

func TestPolyphaseCachesFilters(t *testing.T) {
	p := NewPolyphase()
	a := p.filter(5, 4)
	b := p.filter(5, 4)
	if a != b {
		t.Errorf("filter not cached")
	}
}
