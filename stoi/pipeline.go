package stoi

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-stoi/algorithms/common"
	"github.com/RyanBlaney/sonido-stoi/algorithms/spectral"
	"github.com/RyanBlaney/sonido-stoi/algorithms/temporal"
	"github.com/RyanBlaney/sonido-stoi/logging"
)

// pipeline runs the full measure for one pair at a time. It owns every
// intermediate buffer and its FFT plan, so a pipeline must not be shared
// between goroutines; batch workers each hold their own and reuse it
// across elements.
type pipeline struct {
	eval     *Evaluator
	framer   *spectral.Framer
	stft     *spectral.STFT
	detector *temporal.ActivityDetector
	scorer   *segmentScorer

	cleanFrames, degradedFrames *common.Matrix
	power                       *common.Matrix
	cleanBands, degradedBands   *common.Matrix
	cleanSignal, degradedSignal []float64
}

func newPipeline(e *Evaluator) (*pipeline, error) {
	framer, err := spectral.NewFramer(e.config.FrameLength, e.config.HopLength)
	if err != nil {
		return nil, err
	}

	transform, err := spectral.NewTransform(e.config.FFTBackend, e.config.FFTSize)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		eval:           e,
		framer:         framer,
		stft:           spectral.NewSTFT(transform),
		detector:       temporal.NewActivityDetector(e.config.DynamicRange),
		scorer:         newSegmentScorer(e.config),
		cleanFrames:    &common.Matrix{},
		degradedFrames: &common.Matrix{},
		power:          &common.Matrix{},
		cleanBands:     &common.Matrix{},
		degradedBands:  &common.Matrix{},
	}, nil
}

// run scores one validated pair. Degenerate inputs return NaN with the
// matching sentinel error.
func (p *pipeline) run(clean, degraded []float64, sampleRate int) (float64, error) {
	cfg := p.eval.config
	logger := p.eval.logger

	x, err := p.eval.resampler.Resample(clean, sampleRate, cfg.SampleRate)
	if err != nil {
		return math.NaN(), fmt.Errorf("resample clean: %w", err)
	}
	y, err := p.eval.resampler.Resample(degraded, sampleRate, cfg.SampleRate)
	if err != nil {
		return math.NaN(), fmt.Errorf("resample degraded: %w", err)
	}

	p.framer.Frames(p.cleanFrames, x)
	if p.cleanFrames.Cols == 0 {
		return math.NaN(), fmt.Errorf("%w: %d samples at %d Hz, need more than %d",
			ErrTooShort, len(x), cfg.SampleRate, p.framer.FrameLength())
	}
	p.framer.Frames(p.degradedFrames, y)

	retained, err := p.detector.Detect(p.cleanFrames)
	if err != nil {
		if errors.Is(err, temporal.ErrNoActiveFrames) {
			logger.Warn("Clean reference is silent", logging.Fields{
				"frames": p.cleanFrames.Cols,
			})
			return math.NaN(), ErrSilentReference
		}
		return math.NaN(), err
	}

	// rebuild contiguous signals from the active frames only
	hop := p.framer.HopLength()
	p.cleanSignal = spectral.OverlapAdd(p.cleanSignal, p.cleanFrames, retained, hop)
	p.degradedSignal = spectral.OverlapAdd(p.degradedSignal, p.degradedFrames, retained, hop)

	if err := p.bandAmplitudes(p.cleanBands, p.cleanFrames, p.cleanSignal); err != nil {
		return math.NaN(), err
	}
	if err := p.bandAmplitudes(p.degradedBands, p.degradedFrames, p.degradedSignal); err != nil {
		return math.NaN(), err
	}

	logger.Debug("Band amplitudes computed", logging.Fields{
		"input_samples":   len(clean),
		"input_rate":      sampleRate,
		"frames":          p.cleanFrames.Cols,
		"retained_frames": len(retained),
		"spectral_frames": p.cleanBands.Cols,
		"bands":           p.eval.bands.NumBands(),
	})

	// tiny but non-zero references can underflow to zero band power
	if p.cleanBands.Cols > 0 && floats.Max(p.cleanBands.Data) == 0 {
		logger.Warn("Clean reference has no band energy", logging.Fields{
			"spectral_frames": p.cleanBands.Cols,
		})
		return math.NaN(), ErrSilentReference
	}

	if p.cleanBands.Cols < cfg.SegmentLength {
		logger.Warn("Not enough active frames for one segment", logging.Fields{
			"spectral_frames": p.cleanBands.Cols,
			"segment_length":  cfg.SegmentLength,
		})
		return math.NaN(), fmt.Errorf("%w: %d frames, need %d",
			ErrInsufficientFrames, p.cleanBands.Cols, cfg.SegmentLength)
	}

	var scores []float64
	if cfg.Extended {
		scores = p.scorer.extended(p.cleanBands, p.degradedBands)
	} else {
		scores = p.scorer.standard(p.cleanBands, p.degradedBands)
	}

	return aggregate(scores), nil
}

// bandAmplitudes frames signal (reusing frames as scratch), takes the power
// spectrum of every frame and folds it into one-third-octave bands
func (p *pipeline) bandAmplitudes(dst, frames *common.Matrix, signal []float64) error {
	p.framer.Frames(frames, signal)

	if _, err := p.stft.PowerSpectrogram(p.power, frames); err != nil {
		return err
	}
	if _, err := p.eval.bands.Apply(dst, p.power); err != nil {
		return err
	}
	return nil
}
