package stoi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-stoi/algorithms/resample"
	"github.com/RyanBlaney/sonido-stoi/algorithms/spectral"
)

// Analysis constants of the standard STOI algorithm
const (
	DefaultSampleRate    = 10000 // internal analysis rate, Hz
	DefaultFrameLength   = 256   // 25.6 ms at 10 kHz
	DefaultHopLength     = DefaultFrameLength / 2
	DefaultFFTSize       = 512
	DefaultNumBands      = 15
	DefaultMinFrequency  = 150.0 // centre of the lowest one-third-octave band, Hz
	DefaultSegmentLength = 30    // frames per correlation segment (384 ms)
	DefaultSegmentHop    = 1
	DefaultDynamicRange  = 40.0  // dB below the loudest frame still scored
	DefaultBeta          = -15.0 // lower signal-to-distortion bound, dB
)

// Config holds the full parameter set of the STOI pipeline
type Config struct {
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate"`
	FrameLength   int     `json:"frame_length" yaml:"frame_length"`
	HopLength     int     `json:"hop_length" yaml:"hop_length"`
	FFTSize       int     `json:"fft_size" yaml:"fft_size"`
	NumBands      int     `json:"num_bands" yaml:"num_bands"`
	MinFrequency  float64 `json:"min_frequency" yaml:"min_frequency"`
	SegmentLength int     `json:"segment_length" yaml:"segment_length"`
	SegmentHop    int     `json:"segment_hop" yaml:"segment_hop"`
	DynamicRange  float64 `json:"dynamic_range" yaml:"dynamic_range"`
	Beta          float64 `json:"beta" yaml:"beta"`

	// Extended selects ESTOI scoring
	Extended bool `json:"extended" yaml:"extended"`

	// Workers bounds batch parallelism; 0 means runtime.NumCPU()
	Workers int `json:"workers" yaml:"workers"`

	FFTBackend spectral.FFTBackend `json:"fft_backend" yaml:"fft_backend"`
	Resampler  resample.Method     `json:"resampler" yaml:"resampler"`
	BandShape  spectral.BandShape  `json:"band_shape" yaml:"band_shape"`
}

// DefaultConfig returns the standard STOI configuration
func DefaultConfig() *Config {
	return &Config{
		SampleRate:    DefaultSampleRate,
		FrameLength:   DefaultFrameLength,
		HopLength:     DefaultHopLength,
		FFTSize:       DefaultFFTSize,
		NumBands:      DefaultNumBands,
		MinFrequency:  DefaultMinFrequency,
		SegmentLength: DefaultSegmentLength,
		SegmentHop:    DefaultSegmentHop,
		DynamicRange:  DefaultDynamicRange,
		Beta:          DefaultBeta,
		Extended:      false,
		Workers:       0,
		FFTBackend:    spectral.BackendGonum,
		Resampler:     resample.MethodPolyphase,
		BandShape:     spectral.BandRectangular,
	}
}

// ExtendedConfig returns the ESTOI configuration
func ExtendedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Extended = true
	return cfg
}

// ClipFactor returns the ceiling applied to normalised degraded band
// amplitudes relative to clean ones: 1 + 10^(-Beta/20)
func (c *Config) ClipFactor() float64 {
	return 1 + math.Pow(10, -c.Beta/20)
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Validate checks that c contains a coherent set of values. It returns a
// joined error listing every problem, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.FrameLength <= 0 {
		errs = append(errs, fmt.Errorf("frame_length must be positive, got %d", c.FrameLength))
	}
	if c.HopLength <= 0 || c.HopLength > c.FrameLength {
		errs = append(errs, fmt.Errorf("hop_length must be in [1, frame_length], got %d", c.HopLength))
	}
	if c.FFTSize < c.FrameLength {
		errs = append(errs, fmt.Errorf("fft_size %d is smaller than frame_length %d", c.FFTSize, c.FrameLength))
	}
	if c.NumBands <= 0 {
		errs = append(errs, fmt.Errorf("num_bands must be positive, got %d", c.NumBands))
	}
	if c.MinFrequency <= 0 {
		errs = append(errs, fmt.Errorf("min_frequency must be positive, got %g", c.MinFrequency))
	}
	if c.SampleRate > 0 && c.NumBands > 0 && c.MinFrequency > 0 {
		top := c.MinFrequency * math.Pow(2, float64(2*c.NumBands-1)/6)
		if top > float64(c.SampleRate)/2 {
			errs = append(errs, fmt.Errorf("highest band edge %.0f Hz exceeds Nyquist %d Hz", top, c.SampleRate/2))
		}
	}
	if c.SegmentLength < 2 {
		errs = append(errs, fmt.Errorf("segment_length must be at least 2, got %d", c.SegmentLength))
	}
	if c.SegmentHop <= 0 {
		errs = append(errs, fmt.Errorf("segment_hop must be positive, got %d", c.SegmentHop))
	}
	if c.DynamicRange <= 0 {
		errs = append(errs, fmt.Errorf("dynamic_range must be positive, got %g", c.DynamicRange))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}

	switch c.FFTBackend {
	case spectral.BackendGonum, spectral.BackendGoDSP, "":
	default:
		errs = append(errs, fmt.Errorf("unknown fft_backend %q", c.FFTBackend))
	}
	switch c.Resampler {
	case resample.MethodPolyphase, resample.MethodSoxr, "":
	default:
		errs = append(errs, fmt.Errorf("unknown resampler %q", c.Resampler))
	}
	switch c.BandShape {
	case spectral.BandRectangular, spectral.BandTriangular, "":
	default:
		errs = append(errs, fmt.Errorf("unknown band_shape %q", c.BandShape))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes a YAML config from r on top of the defaults
// and validates the result
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
