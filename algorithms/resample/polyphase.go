package resample

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
	"github.com/RyanBlaney/sonido-stoi/algorithms/windowing"
)

// Filter design constants for the anti-aliasing low-pass
const (
	rejectionDB = 60.0
	rollOffRate = 0.1 // transition width as a fraction of the cutoff
)

// Polyphase is a rational-ratio resampler: upsample by up, low-pass with a
// Kaiser-windowed sinc, downsample by down. The filter is zero-phase and has
// unit DC gain, so a constant input stays constant. Only the taps that meet
// non-zero upsampled samples are evaluated.
//
// Designed filters are cached per ratio and shared read-only; Polyphase is
// safe for concurrent use.
type Polyphase struct {
	mu      sync.RWMutex
	filters map[[2]int]*polyFilter
}

type polyFilter struct {
	up, down int
	half     int       // taps run from -half to +half
	taps     []float64 // 2·half+1 taps, scaled by up
}

// NewPolyphase creates a polyphase resampler
func NewPolyphase() *Polyphase {
	return &Polyphase{filters: make(map[[2]int]*polyFilter)}
}

// Resample converts x from one rate to the other. Equal rates return a copy.
func (p *Polyphase) Resample(x []float64, from, to int) ([]float64, error) {
	same, err := validate(x, from, to)
	if err != nil {
		return nil, err
	}
	if same {
		return passthrough(x), nil
	}

	g := common.GCD(from, to)
	f := p.filter(to/g, from/g)

	out := make([]float64, OutputLength(len(x), from, to))
	last := len(x) - 1
	for i := range out {
		// y[i] = Σ_j x[j]·h[half + i·down - j·up]
		centre := f.half + i*f.down
		jLo := max(0, common.CeilDiv(max(0, centre-2*f.half), f.up))
		jHi := min(last, centre/f.up)

		sum := 0.0
		for j := jLo; j <= jHi; j++ {
			sum += x[j] * f.taps[centre-j*f.up]
		}
		out[i] = sum
	}

	return out, nil
}

func (p *Polyphase) filter(up, down int) *polyFilter {
	key := [2]int{up, down}

	p.mu.RLock()
	f, ok := p.filters[key]
	p.mu.RUnlock()
	if ok {
		return f
	}

	f = designFilter(up, down)

	p.mu.Lock()
	if existing, ok := p.filters[key]; ok {
		f = existing
	} else {
		p.filters[key] = f
	}
	p.mu.Unlock()

	return f
}

// designFilter builds the anti-aliasing filter for an up/down ratio
func designFilter(up, down int) *polyFilter {
	cutoff := 1 / (2 * float64(max(up, down)))
	rollOff := cutoff * rollOffRate
	half := int(math.Ceil((rejectionDB - 8) / (28.714 * rollOff)))

	size := 2*half + 1
	window := windowing.NewKaiser(size, windowing.KaiserBeta(rejectionDB), true).GetCoefficients()

	taps := make([]float64, size)
	for i := range taps {
		taps[i] = window[i] * sinc(2*cutoff*float64(i-half))
	}

	// unit DC gain, then compensate for the zeros inserted by upsampling
	floats.Scale(float64(up)/floats.Sum(taps), taps)

	return &polyFilter{
		up:   up,
		down: down,
		half: half,
		taps: taps,
	}
}

// sinc is the normalised sinc sin(πx)/(πx)
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
