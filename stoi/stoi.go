// Package stoi computes Short-Time Objective Intelligibility scores and
// their extended variant (ESTOI) for pairs of clean and degraded speech
// waveforms.
package stoi

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-stoi/algorithms/resample"
	"github.com/RyanBlaney/sonido-stoi/algorithms/spectral"
	"github.com/RyanBlaney/sonido-stoi/logging"
)

// Result is the outcome for one element of a batch. Score is NaN whenever
// Err is non-nil.
type Result struct {
	Score float64 `json:"score" yaml:"score"`
	Err   error   `json:"-" yaml:"-"`
}

// Pair is one clean/degraded pair for ScorePairs. Pairs in one call may
// have different lengths and sample rates.
type Pair struct {
	Clean      []float64
	Degraded   []float64
	SampleRate int
}

// Evaluator scores waveform pairs under one configuration. It is safe for
// concurrent use: the band weights and resampling filters it holds are
// read-only, and every call runs on a pipeline of its own.
type Evaluator struct {
	config    *Config
	bands     *spectral.OctaveBands
	resampler resample.Resampler
	pipelines sync.Pool
	logger    logging.Logger
}

// NewEvaluator validates cfg and builds the shared analysis state. A nil
// cfg selects DefaultConfig.
func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bands, err := spectral.NewOctaveBands(cfg.SampleRate, cfg.FFTSize, cfg.NumBands, cfg.MinFrequency, cfg.BandShape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	resampler, err := resample.New(cfg.Resampler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	variant := "stoi"
	if cfg.Extended {
		variant = "estoi"
	}

	return &Evaluator{
		config:    cfg,
		bands:     bands,
		resampler: resampler,
		logger: logging.WithFields(logging.Fields{
			"component": "stoi_evaluator",
			"variant":   variant,
		}),
	}, nil
}

// Config returns a copy of the evaluator's configuration
func (e *Evaluator) Config() *Config {
	return e.config.Clone()
}

// Bands returns the one-third-octave band layout in use
func (e *Evaluator) Bands() []spectral.Band {
	return e.bands.Bands()
}

// SetLogger replaces the evaluator's logger. It must not be called while
// scores are being computed.
func (e *Evaluator) SetLogger(logger logging.Logger) {
	e.logger = logger
}

// Score computes the intelligibility of degraded relative to clean, both
// sampled at sampleRate Hz.
//
// Parameter errors (ErrInvalidSampleRate, ErrEmptySignal,
// ErrLengthMismatch, ErrNonFinite, ErrTooShort) are reported before any
// analysis. Degenerate inputs return NaN with ErrSilentReference or
// ErrInsufficientFrames.
func (e *Evaluator) Score(clean, degraded []float64, sampleRate int) (float64, error) {
	if err := e.validatePair(clean, degraded, sampleRate); err != nil {
		return math.NaN(), err
	}

	p, err := e.acquire()
	if err != nil {
		return math.NaN(), err
	}
	defer e.pipelines.Put(p)

	return p.run(clean, degraded, sampleRate)
}

func (e *Evaluator) acquire() (*pipeline, error) {
	if p, ok := e.pipelines.Get().(*pipeline); ok {
		return p, nil
	}
	return newPipeline(e)
}

// validatePair performs every check that does not need the analysis itself
func (e *Evaluator) validatePair(clean, degraded []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(clean) == 0 || len(degraded) == 0 {
		return ErrEmptySignal
	}
	if len(clean) != len(degraded) {
		return fmt.Errorf("%w: clean has %d samples, degraded %d", ErrLengthMismatch, len(clean), len(degraded))
	}
	if err := checkFinite(clean, "clean"); err != nil {
		return err
	}
	if err := checkFinite(degraded, "degraded"); err != nil {
		return err
	}

	return e.validateLength(len(clean), sampleRate)
}

// validateLength reports ErrTooShort when n samples at sampleRate leave no
// complete analysis frame once resampled
func (e *Evaluator) validateLength(n, sampleRate int) error {
	resampled := resample.OutputLength(n, sampleRate, e.config.SampleRate)
	if resampled <= e.config.FrameLength {
		return fmt.Errorf("%w: %d samples at %d Hz, need more than %d at %d Hz",
			ErrTooShort, n, sampleRate, e.config.FrameLength, e.config.SampleRate)
	}
	return nil
}

func checkFinite(x []float64, name string) error {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s sample %d is %v", ErrNonFinite, name, i, v)
		}
	}
	return nil
}

var (
	defaultEvaluator  = sync.OnceValues(func() (*Evaluator, error) { return NewEvaluator(DefaultConfig()) })
	extendedEvaluator = sync.OnceValues(func() (*Evaluator, error) { return NewEvaluator(ExtendedConfig()) })
)

func sharedEvaluator(extended bool) (*Evaluator, error) {
	if extended {
		return extendedEvaluator()
	}
	return defaultEvaluator()
}

// Compute scores one pair with the default configuration. extended selects
// ESTOI.
func Compute(clean, degraded []float64, sampleRate int, extended bool) (float64, error) {
	e, err := sharedEvaluator(extended)
	if err != nil {
		return math.NaN(), err
	}
	return e.Score(clean, degraded, sampleRate)
}

// ComputeBatch scores aligned rows of clean and degraded with the default
// configuration. See Evaluator.ScoreBatch.
func ComputeBatch(ctx context.Context, clean, degraded [][]float64, sampleRate int, extended bool) ([]Result, error) {
	e, err := sharedEvaluator(extended)
	if err != nil {
		return nil, err
	}
	return e.ScoreBatch(ctx, clean, degraded, sampleRate)
}
