package transcode

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// errUnsupportedWAV marks WAV encodings the in-process reader does not
// handle (float, A-law, extensible); the caller falls back to ffmpeg
var errUnsupportedWAV = errors.New("unsupported wav encoding")

const wavFormatPCM = 1

func decodeWAVFile(filename string, maxDuration time.Duration) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid wav file", errUnsupportedWAV, filename)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d", errUnsupportedWAV, decoder.WavAudioFormat)
	}
	switch decoder.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", errUnsupportedWAV, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav samples: %w", err)
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav header reports %d Hz, %d channels", sampleRate, channels)
	}

	pcm := downmix(buf, channels, int(decoder.BitDepth))
	if maxDuration > 0 {
		limit := int(maxDuration.Seconds() * float64(sampleRate))
		if limit < len(pcm) {
			pcm = pcm[:limit]
		}
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAudio, filename)
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesDuration(len(pcm), sampleRate),
		Source:     filename,
		Codec:      fmt.Sprintf("pcm_s%dle", decoder.BitDepth),
	}, nil
}

// downmix averages interleaved integer channels into one float channel
// normalised to [-1, 1]
func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)

	for i := range frames {
		sum := 0
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}
		out[i] = float64(sum) * scale / float64(channels)
	}

	return out
}
