package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Soxr resamples with the pure Go port of libsoxr at high quality. It is
// faster than Polyphase for large ratios but uses a different filter, so
// scores computed through it drift slightly from the polyphase path.
type Soxr struct {
	quality resampling.QualitySpec
}

// NewSoxr creates a soxr resampler with the high quality preset
func NewSoxr() *Soxr {
	return &Soxr{quality: resampling.QualitySpec{Preset: resampling.QualityHigh}}
}

// Resample converts x from one rate to the other. The output is trimmed or
// zero-padded to ceil(len(x)·to/from) samples so that both methods agree on
// length.
func (s *Soxr) Resample(x []float64, from, to int) ([]float64, error) {
	same, err := validate(x, from, to)
	if err != nil {
		return nil, err
	}
	if same {
		return passthrough(x), nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    s.quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(x)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush error: %w", err)
	}
	out = append(out, tail...)

	want := OutputLength(len(x), from, to)
	if len(out) >= want {
		return out[:want], nil
	}
	padded := make([]float64, want)
	copy(padded, out)
	return padded, nil
}
