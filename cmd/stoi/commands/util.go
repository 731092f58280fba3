package commands

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-stoi/stoi"
	"github.com/RyanBlaney/sonido-stoi/transcode"
)

// loadPair decodes a clean/degraded pair and checks that the two files can
// be compared sample for sample
func loadPair(ctx context.Context, decoder *transcode.Decoder, cleanPath, degradedPath string) (stoi.Pair, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var clean, degraded *transcode.AudioData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clean, err = decoder.DecodeFile(gctx, cleanPath)
		if err != nil {
			return fmt.Errorf("decode %s: %w", cleanPath, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		degraded, err = decoder.DecodeFile(gctx, degradedPath)
		if err != nil {
			return fmt.Errorf("decode %s: %w", degradedPath, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return stoi.Pair{}, err
	}

	if clean.SampleRate != degraded.SampleRate {
		return stoi.Pair{}, fmt.Errorf("%s is %d Hz but %s is %d Hz",
			cleanPath, clean.SampleRate, degradedPath, degraded.SampleRate)
	}

	return stoi.Pair{
		Clean:      clean.PCM,
		Degraded:   degraded.PCM,
		SampleRate: clean.SampleRate,
	}, nil
}

// formatScore renders a score, and the reason when it could not be
// computed, for text output
func formatScore(score float64, reason string) string {
	if reason != "" {
		return fmt.Sprintf("%.6f\t%s", score, reason)
	}
	return fmt.Sprintf("%.6f", score)
}
