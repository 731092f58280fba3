package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-stoi/logging"
)

var (
	// ErrNoAudio is returned when a file decodes to zero samples
	ErrNoAudio = errors.New("no audio samples decoded")

	// ErrFFmpegUnavailable is returned when a file needs ffmpeg and the
	// configured ffmpeg or ffprobe binary cannot be run
	ErrFFmpegUnavailable = errors.New("ffmpeg unavailable")
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"` // mono samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source before downmix
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
	Codec      string        `json:"codec,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`   // Path to ffmpeg binary
	FFprobePath string        `json:"ffprobe_path" yaml:"ffprobe_path"` // Path to ffprobe binary
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`           // Timeout for ffmpeg operations
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration"` // 0 decodes the whole file

	// ForceFFmpeg routes WAV files through ffmpeg as well
	ForceFFmpeg bool `json:"force_ffmpeg" yaml:"force_ffmpeg"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath:  "ffmpeg",  // Assume in PATH
		FFprobePath: "ffprobe", // Assume in PATH
		Timeout:     30 * time.Second,
		MaxDuration: 0,
	}
}

// Decoder turns audio files into mono float64 PCM at their native rate.
// WAV files are read in-process; everything else is handed to ffmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger

	toolsMu sync.Mutex
	toolsOK bool
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder. A nil config selects the defaults.
func NewDecoder(config *DecoderConfig) (*Decoder, error) {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	d := &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
	if err := d.ValidateConfig(); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeFile decodes an audio file to mono PCM
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	logger.Debug("Starting audio file decode")

	if !d.config.ForceFFmpeg && strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := decodeWAVFile(filename, d.config.MaxDuration)
		if err == nil {
			logger.Debug("Decoded WAV in-process", logging.Fields{
				"sample_rate": audio.SampleRate,
				"channels":    audio.Channels,
				"samples":     len(audio.PCM),
			})
			return audio, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			logger.Error(err, "Failed to decode WAV file")
			return nil, err
		}
		logger.Debug("WAV encoding not handled in-process, falling back to ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	if err := d.ensureFFmpeg(ctx); err != nil {
		logger.Error(err, "Cannot decode without ffmpeg")
		return nil, err
	}

	// Probe the file to get format info
	metadata, err := d.probeAudioFile(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	return d.decodeFileWithFFmpeg(ctx, filename, metadata, logger)
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// probeAudioFile uses ffprobe to get audio information from a file
func (d *Decoder) probeAudioFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		filename,
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]

	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// the score depends on the rate, so there is no fallback here
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// decodeFileWithFFmpeg performs the actual audio decoding from a file
func (d *Decoder) decodeFileWithFFmpeg(ctx context.Context, filename string, metadata *AudioMetadata, logger logging.Logger) (*AudioData, error) {
	args := append([]string{"-v", "error", "-i", filename}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1") // Output to stdout

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAudio, filename)
	}

	logger.Debug("Ffmpeg decode completed", logging.Fields{
		"samples":     len(samples),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: metadata.SampleRate,
		Channels:   metadata.Channels,
		Duration:   samplesDuration(len(samples), metadata.SampleRate),
		Source:     filename,
		Codec:      metadata.Codec,
	}, nil
}

// buildFFmpegArgs keeps the source rate and downmixes to one channel
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-vn",
		"-map", "0:a:0",
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(metadata.SampleRate),
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	return args
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		// Trim to multiple of 8 bytes
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

func samplesDuration(samples, sampleRate int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.FFmpegPath == "" || d.config.FFprobePath == "" {
		return fmt.Errorf("ffmpeg and ffprobe paths must be set")
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", d.config.MaxDuration)
	}
	return nil
}

// CheckFFmpeg checks that ffmpeg and ffprobe can be executed
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg at %s: %v", ErrFFmpegUnavailable, d.config.FFmpegPath, err)
	}
	if err := exec.CommandContext(ctx, d.config.FFprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("%w: ffprobe at %s: %v", ErrFFmpegUnavailable, d.config.FFprobePath, err)
	}
	return nil
}

// ensureFFmpeg runs CheckFFmpeg until it first succeeds
func (d *Decoder) ensureFFmpeg(ctx context.Context) error {
	d.toolsMu.Lock()
	defer d.toolsMu.Unlock()

	if d.toolsOK {
		return nil
	}
	if err := d.CheckFFmpeg(ctx); err != nil {
		return err
	}
	d.toolsOK = true
	return nil
}
